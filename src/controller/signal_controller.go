package controller

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/paper"
	"quantsystem/src/repository"
)

// ExecutionSummary counts what one ExecuteDue pass did.
type ExecutionSummary struct {
	Due      int
	Filled   int
	Rejected int
	Skipped  int // already claimed elsewhere
	Failed   int
}

// SignalController turns due trading signals into orders.
type SignalController struct {
	trader     paper.Trader
	signals    *repository.TradingSignalRepository
	exceptions *repository.ExceptionRepository
	cfg        Config
	logger     *logger.Entry
}

func NewSignalController(
	trader paper.Trader,
	signals *repository.TradingSignalRepository,
	exceptions *repository.ExceptionRepository,
	cfg Config,
	log *logger.Entry,
) *SignalController {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &SignalController{
		trader:     trader,
		signals:    signals,
		exceptions: exceptions,
		cfg:        cfg,
		logger:     log.WithField("component", "signal_controller"),
	}
}

// ExecuteDue executes every unexecuted signal dated at or before asOf. Business
// rejections are logged and left claimed; infrastructure errors are captured and
// the pass moves on to the next signal.
func (c *SignalController) ExecuteDue(ctx context.Context, asOf time.Time) (ExecutionSummary, error) {
	var sum ExecutionSummary

	due, err := c.signals.FindDue(ctx, asOf, c.cfg.SignalBatch)
	if err != nil {
		return sum, err
	}
	sum.Due = len(due)

	for _, sig := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		log := c.logger.WithFields(logger.Fields{
			"signal_id": sig.ID,
			"symbol":    sig.Symbol,
			"type":      sig.SignalType,
		})

		res, executed, err := c.trader.ExecuteSignal(ctx, sig.ID)
		switch {
		case res != nil && err != nil:
			sum.Rejected++
			log.WithError(err).WithField("order_id", res.Order.ID).Warn("Signal rejected")
		case err != nil:
			sum.Failed++
			level := "error"
			if errors.Is(err, paper.ErrNoPriceData) {
				level = "warn"
			}
			Capture(ctx, c.exceptions, "controller", "SignalController", "ExecuteDue", level, err, map[string]interface{}{
				"signal_id": sig.ID,
				"symbol":    sig.Symbol,
			})
		case !executed:
			sum.Skipped++
			log.Debug("Signal already claimed")
		default:
			sum.Filled++
			log.WithFields(logger.Fields{
				"order_id": res.Order.ID,
				"status":   res.Order.Status,
				"quantity": res.Order.FilledQuantity,
			}).Info("Signal executed")
		}
	}

	c.logger.WithFields(logger.Fields{
		"due":      sum.Due,
		"filled":   sum.Filled,
		"rejected": sum.Rejected,
		"skipped":  sum.Skipped,
		"failed":   sum.Failed,
	}).Info("Due signals processed")

	return sum, nil
}
