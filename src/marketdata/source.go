package marketdata

import (
	"context"
	"errors"
	"time"

	"quantsystem/src/model"
)

var (
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
	ErrNoSource             = errors.New("no bar source configured for market")
)

// BarSource downloads bars for [start, end], ascending.
type BarSource interface {
	FetchBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Bar, error)
}

func timeframeStep(timeframe string) (time.Duration, error) {
	switch timeframe {
	case model.Timeframe1m:
		return time.Minute, nil
	case model.Timeframe1d:
		return 24 * time.Hour, nil
	default:
		return 0, ErrUnsupportedTimeframe
	}
}
