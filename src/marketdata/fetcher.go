package marketdata

import (
	"context"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/model"
	"quantsystem/src/repository"
)

type FetchResult struct {
	Symbol string
	Count  int
	Err    error
}

// Fetcher downloads bars and upserts them, resuming from the newest stored bar.
type Fetcher struct {
	equities BarSource
	crypto   BarSource
	bars     *repository.BarRepository
	cfg      Config
	log      *logger.Entry
	now      func() time.Time
}

func NewFetcher(equities, crypto BarSource, bars *repository.BarRepository, cfg Config, log *logger.Entry) *Fetcher {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Fetcher{
		equities: equities,
		crypto:   crypto,
		bars:     bars,
		cfg:      cfg,
		log:      log.WithField("component", "fetcher"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MarketOf reports CRYPTO for BASE_QUOTE symbols and the configured market otherwise.
func MarketOf(symbol, fallback string) string {
	if strings.ContainsAny(symbol, "_/") {
		return model.MarketCrypto
	}
	return fallback
}

func (f *Fetcher) source(symbol string) BarSource {
	if MarketOf(symbol, f.cfg.Market) == model.MarketCrypto {
		return f.crypto
	}
	return f.equities
}

// startPoint backs up one step from the newest stored bar so a partial last bar is refreshed.
func (f *Fetcher) startPoint(ctx context.Context, symbol, timeframe string, step time.Duration) (time.Time, error) {
	end := f.now()
	latest, err := f.bars.FetchRecent(ctx, symbol, timeframe, end, 1)
	if err != nil {
		return time.Time{}, err
	}
	if len(latest) == 0 {
		return end.AddDate(0, 0, -f.cfg.HistoryDays), nil
	}
	return latest[0].Datetime.Add(-step), nil
}

// Fetch updates every symbol. A failing symbol is reported in its result and does not stop the rest.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string, timeframe string) ([]FetchResult, error) {
	step, err := timeframeStep(timeframe)
	if err != nil {
		return nil, err
	}

	results := make([]FetchResult, 0, len(symbols))
	for _, symbol := range symbols {
		res := FetchResult{Symbol: symbol}
		res.Count, res.Err = f.fetchOne(ctx, symbol, timeframe, step)
		if res.Err != nil {
			f.log.WithError(res.Err).WithField("symbol", symbol).Error("fetch failed")
		} else {
			f.log.WithFields(logger.Fields{"symbol": symbol, "count": res.Count}).Info("bars stored")
		}
		results = append(results, res)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol, timeframe string, step time.Duration) (int, error) {
	src := f.source(symbol)
	if src == nil {
		return 0, ErrNoSource
	}

	start, err := f.startPoint(ctx, symbol, timeframe, step)
	if err != nil {
		return 0, err
	}

	bars, err := src.FetchBars(ctx, symbol, timeframe, start, f.now())
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}
	if err := f.bars.UpsertMany(ctx, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}
