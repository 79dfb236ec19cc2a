// Package signal classifies buy and sell opportunities from indicator rows and
// derives support/resistance levels, target prices and past swing trades.
package signal

import (
	"fmt"

	"quantsystem/src/indicator"
)

type Label string

const (
	StrongBuy  Label = "STRONG_BUY"
	Buy        Label = "BUY"
	WeakBuy    Label = "WEAK_BUY"
	Hold       Label = "HOLD"
	StrongSell Label = "STRONG_SELL"
	Sell       Label = "SELL"
	WeakSell   Label = "WEAK_SELL"
)

// MinRows is the history required before any signal is produced.
const MinRows = 30

const (
	strongThreshold = 60
	normalThreshold = 40
	weakThreshold   = 20
)

// Rank orders labels by conviction so callers can apply a minimum, e.g.
// Rank(l) >= Rank(WeakBuy). Sell labels rank negative.
func Rank(l Label) int {
	switch l {
	case StrongBuy:
		return 3
	case Buy:
		return 2
	case WeakBuy:
		return 1
	case WeakSell:
		return -1
	case Sell:
		return -2
	case StrongSell:
		return -3
	default:
		return 0
	}
}

// IsBuy reports whether l is one of the buy labels.
func IsBuy(l Label) bool { return Rank(l) > 0 }

// IsSell reports whether l is one of the sell labels.
func IsSell(l Label) bool { return Rank(l) < 0 }

// Result is a classified signal. Strength is the sum of triggered contributions.
type Result struct {
	Label        Label    `json:"signal"`
	Strength     int      `json:"strength"`
	Reasons      []string `json:"reasons"`
	CurrentPrice float64  `json:"current_price"`
}

// Normalized maps Strength onto 0-1 for persistence.
func (r Result) Normalized() float64 {
	s := float64(r.Strength) / 100
	if s > 1 {
		return 1
	}
	return s
}

type contribution struct {
	points int
	reason func(cur, prev indicator.Row) (string, bool)
}

func valid(vs ...indicator.Value) bool {
	for _, v := range vs {
		if !v.Valid {
			return false
		}
	}
	return true
}

func goldenCross(a, b, prevA, prevB indicator.Value) bool {
	return valid(a, b, prevA, prevB) && a.Float64 > b.Float64 && prevA.Float64 <= prevB.Float64
}

func deathCross(a, b, prevA, prevB indicator.Value) bool {
	return valid(a, b, prevA, prevB) && a.Float64 < b.Float64 && prevA.Float64 >= prevB.Float64
}

var buyContributions = []contribution{
	{25, func(cur, prev indicator.Row) (string, bool) {
		return "MACD golden cross", goldenCross(cur.MACD, cur.MACDSignal, prev.MACD, prev.MACDSignal)
	}},
	{20, func(cur, _ indicator.Row) (string, bool) {
		return fmt.Sprintf("RSI oversold (%.1f)", cur.RSI.Float64), valid(cur.RSI) && cur.RSI.Float64 < 30
	}},
	{10, func(cur, _ indicator.Row) (string, bool) {
		return fmt.Sprintf("RSI low (%.1f)", cur.RSI.Float64), valid(cur.RSI) && cur.RSI.Float64 >= 30 && cur.RSI.Float64 < 40
	}},
	{20, func(cur, prev indicator.Row) (string, bool) {
		return "KDJ golden cross", goldenCross(cur.KDJK, cur.KDJD, prev.KDJK, prev.KDJD)
	}},
	{15, func(cur, _ indicator.Row) (string, bool) {
		return "Price near lower Bollinger band", valid(cur.BollLower) && cur.Close <= cur.BollLower.Float64*1.02
	}},
	{20, func(cur, _ indicator.Row) (string, bool) {
		ok := valid(cur.MA5, cur.MA10, cur.MA20) && cur.MA5.Float64 > cur.MA10.Float64 && cur.MA10.Float64 > cur.MA20.Float64
		return "Bullish moving average alignment", ok
	}},
}

var sellContributions = []contribution{
	{25, func(cur, prev indicator.Row) (string, bool) {
		return "MACD death cross", deathCross(cur.MACD, cur.MACDSignal, prev.MACD, prev.MACDSignal)
	}},
	{20, func(cur, _ indicator.Row) (string, bool) {
		return fmt.Sprintf("RSI overbought (%.1f)", cur.RSI.Float64), valid(cur.RSI) && cur.RSI.Float64 > 70
	}},
	{10, func(cur, _ indicator.Row) (string, bool) {
		return fmt.Sprintf("RSI high (%.1f)", cur.RSI.Float64), valid(cur.RSI) && cur.RSI.Float64 > 60 && cur.RSI.Float64 <= 70
	}},
	{20, func(cur, prev indicator.Row) (string, bool) {
		return "KDJ death cross", deathCross(cur.KDJK, cur.KDJD, prev.KDJK, prev.KDJD)
	}},
	{15, func(cur, _ indicator.Row) (string, bool) {
		return "Price near upper Bollinger band", valid(cur.BollUpper) && cur.Close >= cur.BollUpper.Float64*0.98
	}},
	{20, func(cur, _ indicator.Row) (string, bool) {
		ok := valid(cur.MA5, cur.MA10, cur.MA20) && cur.MA5.Float64 < cur.MA10.Float64 && cur.MA10.Float64 < cur.MA20.Float64
		return "Bearish moving average alignment", ok
	}},
}

func evaluate(rows []indicator.Row, contributions []contribution, strong, normal, weak Label) Result {
	if len(rows) < MinRows {
		return Result{Label: Hold, Reasons: []string{}}
	}
	cur, prev := rows[len(rows)-1], rows[len(rows)-2]

	res := Result{Reasons: []string{}, CurrentPrice: cur.Close}
	for _, c := range contributions {
		if reason, ok := c.reason(cur, prev); ok {
			res.Strength += c.points
			res.Reasons = append(res.Reasons, reason)
		}
	}

	switch {
	case res.Strength >= strongThreshold:
		res.Label = strong
	case res.Strength >= normalThreshold:
		res.Label = normal
	case res.Strength >= weakThreshold:
		res.Label = weak
	default:
		res.Label = Hold
	}
	return res
}

// GenerateBuy scores bullish conditions on the latest two rows.
func GenerateBuy(rows []indicator.Row) Result {
	return evaluate(rows, buyContributions, StrongBuy, Buy, WeakBuy)
}

// GenerateSell mirrors GenerateBuy for bearish conditions.
func GenerateSell(rows []indicator.Row) Result {
	return evaluate(rows, sellContributions, StrongSell, Sell, WeakSell)
}
