package controller

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"quantsystem/src/indicator"
	"quantsystem/src/mapper"
	"quantsystem/src/model"
	"quantsystem/src/paper"
	"quantsystem/src/repository"
	"quantsystem/src/sellstrategy"
	"quantsystem/src/utils"
)

// MonitorResult is the verdict for one open position.
type MonitorResult struct {
	Symbol   string
	Price    decimal.Decimal
	Decision sellstrategy.Decision
	SignalID uint // zero unless a new SELL signal was written
	// Suppressed is set when today's exit signal was already consumed and the
	// position is still open. No new signal is written until the next day.
	Suppressed bool
}

// PositionMonitor runs the exit policies over every open position and turns
// exits into SELL signals for the signal controller to execute.
type PositionMonitor struct {
	positions  *repository.PositionRepository
	bars       *repository.BarRepository
	signals    *repository.TradingSignalRepository
	exceptions *repository.ExceptionRepository
	evaluator  *sellstrategy.Evaluator
	prices     paper.PriceSource
	cfg        Config
	logger     *logger.Entry
}

func NewPositionMonitor(
	positions *repository.PositionRepository,
	bars *repository.BarRepository,
	signals *repository.TradingSignalRepository,
	exceptions *repository.ExceptionRepository,
	evaluator *sellstrategy.Evaluator,
	prices paper.PriceSource,
	cfg Config,
	log *logger.Entry,
) *PositionMonitor {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &PositionMonitor{
		positions:  positions,
		bars:       bars,
		signals:    signals,
		exceptions: exceptions,
		evaluator:  evaluator,
		prices:     prices,
		cfg:        cfg,
		logger:     log.WithField("component", "position_monitor"),
	}
}

// Run evaluates each open position at the current reference price. Positions
// without a price are skipped. The high-water mark is persisted whether or not
// the position exits.
func (m *PositionMonitor) Run(ctx context.Context, now time.Time) ([]MonitorResult, error) {
	open, err := m.positions.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]MonitorResult, 0, len(open))
	for _, pos := range open {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := m.evaluate(ctx, pos, now)
		if err != nil {
			Capture(ctx, m.exceptions, "controller", "PositionMonitor", "Run", "error", err, map[string]interface{}{
				"symbol": pos.Symbol,
			})
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

func (m *PositionMonitor) evaluate(ctx context.Context, pos model.Position, now time.Time) (*MonitorResult, error) {
	log := m.logger.WithField("symbol", pos.Symbol)

	price, ok, err := m.prices.LatestPrice(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn("No reference price, position not evaluated")
		return nil, nil
	}

	holding := mapper.ToHolding(pos)
	if holding.HighWaterMark <= 0 && pos.EntryDate != nil {
		since, err := m.bars.FetchSince(ctx, pos.Symbol, model.Timeframe1d, *pos.EntryDate)
		if err != nil {
			return nil, err
		}
		holding.HighWaterMark = sellstrategy.ReconstructHighWaterMark(holding.AvgPrice, mapper.ClosesSince(since, *pos.EntryDate))
		log.WithField("hwm", holding.HighWaterMark).Info("High-water mark rebuilt from bars")
	}

	rows, err := m.rows(ctx, pos.Symbol, now)
	if err != nil {
		return nil, err
	}

	d := m.evaluator.ShouldSell(holding, price.InexactFloat64(), rows, now)
	if err := m.positions.UpdateHighWaterMark(ctx, pos.Symbol, decimal.NewFromFloat(d.HighWaterMark)); err != nil {
		return nil, err
	}

	res := &MonitorResult{Symbol: pos.Symbol, Price: price, Decision: d}
	if !d.ShouldSell {
		return res, nil
	}

	sig := mapper.ExitSignal(pos, utils.ResetTime(now, "day"), price.InexactFloat64(), d)
	created, err := m.signals.CreateIfAbsent(ctx, sig)
	if err != nil {
		return nil, err
	}
	if created {
		res.SignalID = sig.ID
		log.WithField("reasons", d.Reasons).Info("Exit signal created")
		return res, nil
	}

	prior, err := m.signals.FindByKey(ctx, sig.Symbol, sig.SignalDate, sig.SignalType)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.IsExecuted {
		res.Suppressed = true
		entry := log.WithFields(logger.Fields{
			"signal_id": prior.ID,
			"reasons":   d.Reasons,
		})
		if prior.OrderID != nil {
			entry = entry.WithField("order_id", *prior.OrderID)
		}
		entry.Warn("Exit triggered but today's exit signal was already consumed, position still open")
	}
	return res, nil
}

// rows computes indicators over recent daily bars. Too little history only
// disables the technical checks.
func (m *PositionMonitor) rows(ctx context.Context, symbol string, now time.Time) ([]indicator.Row, error) {
	bars, err := m.bars.FetchRecent(ctx, symbol, model.Timeframe1d, now, m.cfg.MonitorLookback)
	if err != nil {
		return nil, err
	}

	rows, err := indicator.Compute(mapper.BarsToIndicator(bars))
	if err != nil {
		var verr *indicator.ValidationError
		if errors.As(err, &verr) {
			m.logger.WithField("symbol", symbol).WithError(err).Debug("Technical exit checks skipped")
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}
