package signal

import (
	"math"
	"sort"
	"time"

	"quantsystem/src/indicator"
)

// DefaultLevelPeriods are the lookbacks used for support and resistance.
var DefaultLevelPeriods = []int{20, 60}

const (
	DefaultDaysBack = 90
	swingHalfWindow = 5
	minSwingProfit  = 5.0
	maxSwingTrades  = 10
	fallbackATRBars = 14
	stopATRMultiple = 2
	target1ATRMult  = 3
	target2ATRMult  = 5
)

// Level is a price level with its distance from the current price in percent.
type Level struct {
	Period      int     `json:"period"`
	Price       float64 `json:"price"`
	DistancePct float64 `json:"distance_pct"`
}

// Levels holds supports sorted by price descending and resistances ascending,
// so the first entry of each is the nearest to the current price.
type Levels struct {
	CurrentPrice float64 `json:"current_price"`
	Support      []Level `json:"support"`
	Resistance   []Level `json:"resistance"`
}

// SupportResistance takes the lowest low and highest high over each trailing
// period. A period longer than the history uses all of it.
func SupportResistance(rows []indicator.Row, periods ...int) Levels {
	if len(rows) == 0 {
		return Levels{}
	}
	if len(periods) == 0 {
		periods = DefaultLevelPeriods
	}
	current := rows[len(rows)-1].Close
	out := Levels{CurrentPrice: current}

	distance := func(p float64) float64 {
		if current == 0 {
			return 0
		}
		return (p - current) / current * 100
	}

	for _, period := range periods {
		if period <= 0 {
			continue
		}
		from := len(rows) - period
		if from < 0 {
			from = 0
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range rows[from:] {
			lo = math.Min(lo, r.Low)
			hi = math.Max(hi, r.High)
		}
		out.Support = append(out.Support, Level{Period: period, Price: lo, DistancePct: distance(lo)})
		out.Resistance = append(out.Resistance, Level{Period: period, Price: hi, DistancePct: distance(hi)})
	}

	sort.SliceStable(out.Support, func(i, j int) bool { return out.Support[i].Price > out.Support[j].Price })
	sort.SliceStable(out.Resistance, func(i, j int) bool { return out.Resistance[i].Price < out.Resistance[j].Price })
	return out
}

// Targets are ATR based exit levels.
type Targets struct {
	CurrentPrice float64 `json:"current_price"`
	ATR          float64 `json:"atr"`
	StopLoss     float64 `json:"stop_loss"`
	Target1      float64 `json:"target1"`
	Target2      float64 `json:"target2"`
	RiskReward1  float64 `json:"risk_reward1"`
	RiskReward2  float64 `json:"risk_reward2"`
}

// TargetPrices uses the latest ATR, or the mean true range of the last 14 bars
// when ATR is not yet defined. Risk/reward is 0 when the stop is not below price.
func TargetPrices(rows []indicator.Row) Targets {
	if len(rows) == 0 {
		return Targets{}
	}
	last := rows[len(rows)-1]
	current := last.Close

	atr := last.ATR.Float64
	if !last.ATR.Valid {
		atr = meanTrueRange(rows, fallbackATRBars)
	}

	levels := SupportResistance(rows)
	stop := current - stopATRMultiple*atr
	if len(levels.Support) > 0 {
		stop = math.Max(stop, levels.Support[0].Price)
	}
	t1 := current + target1ATRMult*atr
	t2 := current + target2ATRMult*atr
	if len(levels.Resistance) > 0 {
		t2 = math.Min(t2, levels.Resistance[0].Price)
	}

	out := Targets{CurrentPrice: current, ATR: atr, StopLoss: stop, Target1: t1, Target2: t2}
	if risk := current - stop; risk > 0 {
		out.RiskReward1 = (t1 - current) / risk
		out.RiskReward2 = (t2 - current) / risk
	}
	return out
}

func meanTrueRange(rows []indicator.Row, n int) float64 {
	bars := indicator.Bars(rows)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	tr := indicator.TrueRange(highs, lows, closes)
	if len(tr) > n {
		tr = tr[len(tr)-n:]
	}
	if len(tr) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range tr {
		sum += x
	}
	return sum / float64(len(tr))
}

// Trade is a hindsight swing from a local low to the best later high.
type Trade struct {
	BuyDate   time.Time `json:"buy_date"`
	BuyPrice  float64   `json:"buy_price"`
	SellDate  time.Time `json:"sell_date"`
	SellPrice float64   `json:"sell_price"`
	ProfitPct float64   `json:"profit_pct"`
	HoldDays  int       `json:"hold_days"`
}

// BestHistoricalTrades scans the last daysBack rows for local lows (no lower
// low within five bars either side, clipped at the edges), pairs each with the
// highest subsequent high, keeps trades above 5% and returns the top ten.
func BestHistoricalTrades(rows []indicator.Row, daysBack int) []Trade {
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	if len(rows) > daysBack {
		rows = rows[len(rows)-daysBack:]
	}
	n := len(rows)

	trades := []Trade{}
	for i := 0; i < n-1; i++ {
		lo, hi := i-swingHalfWindow, i+swingHalfWindow
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		isMin := true
		for k := lo; k <= hi; k++ {
			if rows[k].Low < rows[i].Low {
				isMin = false
				break
			}
		}
		if !isMin || rows[i].Low <= 0 {
			continue
		}

		exit := i + 1
		for k := i + 2; k < n; k++ {
			if rows[k].High > rows[exit].High {
				exit = k
			}
		}
		profit := (rows[exit].High - rows[i].Low) / rows[i].Low * 100
		if profit <= minSwingProfit {
			continue
		}
		trades = append(trades, Trade{
			BuyDate:   rows[i].Date,
			BuyPrice:  rows[i].Low,
			SellDate:  rows[exit].Date,
			SellPrice: rows[exit].High,
			ProfitPct: profit,
			HoldDays:  int(rows[exit].Date.Sub(rows[i].Date).Hours() / 24),
		})
	}

	sort.SliceStable(trades, func(i, j int) bool { return trades[i].ProfitPct > trades[j].ProfitPct })
	if len(trades) > maxSwingTrades {
		trades = trades[:maxSwingTrades]
	}
	return trades
}
