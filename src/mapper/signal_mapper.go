package mapper

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quantsystem/src/model"
	"quantsystem/src/scoring"
	"quantsystem/src/sellstrategy"
	"quantsystem/src/signal"
)

// ToSelection flattens a ranked score and the buy classification for persistence.
func ToSelection(r scoring.Ranked, market string, date time.Time, buy signal.Result) model.Selection {
	return model.Selection{
		Symbol:         r.Symbol,
		Date:           date,
		Market:         market,
		TotalScore:     r.Result.Total,
		TechnicalScore: r.Result.Technical,
		VolumeScore:    r.Result.Volume,
		TrendScore:     r.Result.Trend,
		PatternScore:   r.Result.Pattern,
		Rank:           r.Rank,
		BuySignal:      string(buy.Label),
		BuyStrength:    buy.Strength,
		Reasons:        strings.Join(buy.Reasons, "; "),
		CurrentPrice:   buy.CurrentPrice,
	}
}

// ToTradingSignal builds the persisted instruction for a classified signal.
// The side comes from the label, so HOLD must be filtered out by the caller.
func ToTradingSignal(symbol, market string, date time.Time, res signal.Result, source string) *model.TradingSignal {
	side := model.SignalTypeBuy
	if signal.IsSell(res.Label) {
		side = model.SignalTypeSell
	}
	return &model.TradingSignal{
		Symbol:         symbol,
		SignalDate:     date,
		SignalType:     side,
		Market:         market,
		SignalStrength: res.Normalized(),
		SignalPrice:    decimal.NewFromFloat(res.CurrentPrice),
		Source:         source,
		Reason:         strings.Join(res.Reasons, "; "),
	}
}

// ExitSignal builds a SELL instruction from a sell-strategy decision.
func ExitSignal(pos model.Position, date time.Time, price float64, d sellstrategy.Decision) *model.TradingSignal {
	return &model.TradingSignal{
		Symbol:         pos.Symbol,
		SignalDate:     date,
		SignalType:     model.SignalTypeSell,
		Market:         pos.Market,
		SignalStrength: 1,
		SignalPrice:    decimal.NewFromFloat(price),
		Source:         model.SignalSourceSellStrategy,
		Reason:         strings.Join(d.Reasons, "; "),
	}
}

// ToHolding converts a position into the evaluator's view of it.
func ToHolding(pos model.Position) sellstrategy.Holding {
	h := sellstrategy.Holding{
		Symbol:        pos.Symbol,
		Quantity:      pos.Quantity,
		AvgPrice:      pos.AvgPrice.InexactFloat64(),
		HighWaterMark: pos.HighWaterMark.InexactFloat64(),
	}
	if pos.EntryDate != nil {
		h.EntryDate = *pos.EntryDate
	}
	return h
}
