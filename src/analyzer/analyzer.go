// Package analyzer runs the daily pipeline: indicators, scores, ranking and
// the BUY/SELL signals the execution side consumes.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/controller"
	"quantsystem/src/indicator"
	"quantsystem/src/mapper"
	"quantsystem/src/marketdata"
	"quantsystem/src/model"
	"quantsystem/src/repository"
	"quantsystem/src/scoring"
	"quantsystem/src/signal"
	"quantsystem/src/utils"
)

var ErrNoBars = errors.New("no daily bars stored")

// Report is the outcome of one pass.
type Report struct {
	Ranking []model.Selection // every scored symbol, best first
	Signals []model.TradingSignal
	Skipped []string
}

// Top returns at most n entries of the ranking.
func (r *Report) Top(n int) []model.Selection {
	if n <= 0 || n >= len(r.Ranking) {
		return r.Ranking
	}
	return r.Ranking[:n]
}

type Analyzer struct {
	bars       *repository.BarRepository
	indicators *repository.IndicatorRepository
	selections *repository.SelectionRepository
	signals    *repository.TradingSignalRepository
	positions  *repository.PositionRepository
	exceptions *repository.ExceptionRepository
	cfg        Config
	minBuy     signal.Label
	logger     *logger.Entry
}

func New(
	bars *repository.BarRepository,
	indicators *repository.IndicatorRepository,
	selections *repository.SelectionRepository,
	signals *repository.TradingSignalRepository,
	positions *repository.PositionRepository,
	exceptions *repository.ExceptionRepository,
	cfg Config,
	log *logger.Entry,
) (*Analyzer, error) {
	minBuy := signal.Label(cfg.MinBuySignal)
	if !signal.IsBuy(minBuy) {
		return nil, fmt.Errorf("minimum buy signal %q is not a buy label", cfg.MinBuySignal)
	}
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Analyzer{
		bars:       bars,
		indicators: indicators,
		selections: selections,
		signals:    signals,
		positions:  positions,
		exceptions: exceptions,
		cfg:        cfg,
		minBuy:     minBuy,
		logger:     log.WithField("component", "analyzer"),
	}, nil
}

type scored struct {
	symbol string
	market string
	date   time.Time
	score  scoring.Result
	buy    signal.Result
}

// Run analyzes every symbol with bars up to asOf. A symbol that fails is
// captured and skipped; the rest of the batch still runs.
func (a *Analyzer) Run(ctx context.Context, symbols []string, asOf time.Time) (*Report, error) {
	report := &Report{}
	results := make(map[string]scored, len(symbols))
	ranked := make([]scoring.Ranked, 0, len(symbols))

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, sigs, err := a.analyze(ctx, sym, asOf)
		if err != nil {
			level := "error"
			if errors.Is(err, indicator.ErrValidation) || errors.Is(err, ErrNoBars) {
				level = "warn"
			}
			controller.Capture(ctx, a.exceptions, "analyzer", "Analyzer", "Run", level, err, map[string]interface{}{
				"symbol": sym,
				"as_of":  asOf,
			})
			report.Skipped = append(report.Skipped, sym)
			continue
		}

		results[sym] = *s
		ranked = append(ranked, scoring.Ranked{Symbol: sym, Result: s.score})
		report.Signals = append(report.Signals, sigs...)
	}

	ranked = scoring.Rank(ranked)
	report.Ranking = make([]model.Selection, len(ranked))
	for i, r := range ranked {
		s := results[r.Symbol]
		report.Ranking[i] = mapper.ToSelection(r, s.market, s.date, s.buy)
	}

	if err := a.selections.SaveAll(ctx, report.Ranking); err != nil {
		return nil, err
	}

	a.logger.WithFields(logger.Fields{
		"symbols": len(symbols),
		"ranked":  len(report.Ranking),
		"signals": len(report.Signals),
		"skipped": len(report.Skipped),
	}).Info("Analysis complete")

	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, symbol string, asOf time.Time) (*scored, []model.TradingSignal, error) {
	bars, err := a.bars.FetchRecent(ctx, symbol, model.Timeframe1d, asOf, a.cfg.Lookback)
	if err != nil {
		return nil, nil, err
	}
	if len(bars) == 0 {
		return nil, nil, ErrNoBars
	}

	rows, err := indicator.Compute(mapper.BarsToIndicator(bars))
	if err != nil {
		return nil, nil, err
	}
	if err := a.indicators.SaveRows(ctx, mapper.RowsToRecords(symbol, rows)); err != nil {
		return nil, nil, err
	}

	market := bars[len(bars)-1].Market
	if market == "" {
		market = marketdata.MarketOf(symbol, a.cfg.Market)
	}
	s := &scored{
		symbol: symbol,
		market: market,
		date:   utils.ResetTime(rows[len(rows)-1].Date, "day"),
		score:  scoring.Score(rows),
		buy:    signal.GenerateBuy(rows),
	}
	sell := signal.GenerateSell(rows)

	pos, err := a.positions.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	held := pos != nil && pos.IsOpen()

	var candidate *model.TradingSignal
	switch {
	case !held && signal.Rank(s.buy.Label) >= signal.Rank(a.minBuy):
		candidate = mapper.ToTradingSignal(symbol, market, s.date, s.buy, model.SignalSourceAnalyzer)
	case held && signal.IsSell(sell.Label):
		candidate = mapper.ToTradingSignal(symbol, market, s.date, sell, model.SignalSourceAnalyzer)
	}

	var out []model.TradingSignal
	if candidate != nil {
		created, err := a.signals.CreateIfAbsent(ctx, candidate)
		if err != nil {
			return nil, nil, err
		}
		if created {
			out = append(out, *candidate)
		}
	}

	a.logger.WithFields(logger.Fields{
		"symbol": symbol,
		"score":  s.score.Total,
		"buy":    s.buy.Label,
		"sell":   sell.Label,
		"held":   held,
	}).Debug("Symbol analyzed")

	return s, out, nil
}
