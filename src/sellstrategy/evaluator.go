package sellstrategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/indicator"
	"quantsystem/src/utils"
)

// Holding is the slice of a position the evaluator needs.
type Holding struct {
	Symbol        string
	Quantity      int64
	AvgPrice      float64
	EntryDate     time.Time
	HighWaterMark float64 // persisted peak, 0 when unknown
}

// Decision carries the verdict plus the peak the caller must persist.
type Decision struct {
	ShouldSell    bool
	Reasons       []string
	HighWaterMark float64
}

type Evaluator struct {
	cfg    Config
	logger *logger.Entry
}

func NewEvaluator(cfg Config, log *logger.Entry) *Evaluator {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Evaluator{cfg: cfg, logger: log.WithField("component", "sellstrategy")}
}

// ReconstructHighWaterMark rebuilds the trailing peak from closes observed since entry.
// The average cost is the floor.
func ReconstructHighWaterMark(avgPrice float64, closesSinceEntry []float64) float64 {
	hwm := avgPrice
	for _, c := range closesSinceEntry {
		if c > hwm {
			hwm = c
		}
	}
	return hwm
}

// ShouldSell evaluates every enabled policy against the current price. Reasons
// are ordered stop-loss, take-profit, fixed-hold, trailing, technical, structural.
func (e *Evaluator) ShouldSell(h Holding, price float64, rows []indicator.Row, today time.Time) Decision {
	hwm := math.Max(h.AvgPrice, h.HighWaterMark)
	if price > hwm {
		hwm = price
	}
	d := Decision{Reasons: []string{}, HighWaterMark: hwm}

	if h.Quantity <= 0 || h.AvgPrice <= 0 || price <= 0 {
		return d
	}

	change := (price - h.AvgPrice) / h.AvgPrice

	if e.cfg.StopLossEnabled && change <= e.cfg.StopLossPct {
		d.Reasons = append(d.Reasons, fmt.Sprintf("Stop loss triggered (%.2f%%)", change*100))
	}

	if e.cfg.TakeProfitEnabled && change >= e.cfg.TakeProfitPct {
		d.Reasons = append(d.Reasons, fmt.Sprintf("Take profit triggered (+%.2f%%)", change*100))
	}

	if e.cfg.FixedHoldEnabled && !h.EntryDate.IsZero() {
		if held := utils.DaysBetween(h.EntryDate, today); held >= e.cfg.HoldDays {
			d.Reasons = append(d.Reasons, fmt.Sprintf("Holding period reached (%d days)", held))
		}
	}

	if e.cfg.TrailingStopEnabled {
		drawdown := (price - hwm) / hwm
		if drawdown <= -e.cfg.TrailingStopPct {
			d.Reasons = append(d.Reasons, fmt.Sprintf("Trailing stop triggered (%.2f%% from high %.2f)", drawdown*100, hwm))
		}
	}

	if e.cfg.TechnicalEnabled {
		if r := e.technical(rows); r != "" {
			d.Reasons = append(d.Reasons, r)
		}
	}

	if e.cfg.StructuralStopEnabled && len(rows) >= 2 {
		floor := h.AvgPrice * (1 + e.cfg.StopLossPct)
		if stop, moved := ComputeNextStopLoss(floor, indicator.Bars(rows), e.cfg.StructuralLookback); moved && price <= stop {
			d.Reasons = append(d.Reasons, fmt.Sprintf("Structural stop broken (%.2f)", stop))
		}
	}

	d.ShouldSell = len(d.Reasons) > 0

	if d.ShouldSell {
		e.logger.WithFields(logger.Fields{
			"symbol":  h.Symbol,
			"price":   price,
			"avg":     h.AvgPrice,
			"hwm":     hwm,
			"reasons": d.Reasons,
		}).Info("exit triggered")
	}

	return d
}

func (e *Evaluator) technical(rows []indicator.Row) string {
	if len(rows) == 0 {
		return ""
	}
	cur := rows[len(rows)-1]

	var parts []string
	if cur.RSI.Valid && cur.RSI.Float64 > e.cfg.RSIOverbought {
		parts = append(parts, fmt.Sprintf("RSI overbought (%.1f)", cur.RSI.Float64))
	}

	if e.cfg.MACDDeathCross && len(rows) >= 2 {
		prev := rows[len(rows)-2]
		if cur.MACD.Valid && cur.MACDSignal.Valid && prev.MACD.Valid && prev.MACDSignal.Valid &&
			cur.MACD.Float64 < cur.MACDSignal.Float64 && prev.MACD.Float64 >= prev.MACDSignal.Float64 {
			parts = append(parts, "MACD death cross")
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "Technical deterioration: " + strings.Join(parts, ", ")
}
