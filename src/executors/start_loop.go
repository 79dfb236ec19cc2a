package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"

	"quantsystem/src/analyzer"
	"quantsystem/src/app"
	"quantsystem/src/controller"
	"quantsystem/src/marketdata"
	"quantsystem/src/model"
	"quantsystem/src/paper"
	"quantsystem/src/risk"
)

type monitor interface {
	Run(ctx context.Context, now time.Time) ([]controller.MonitorResult, error)
}

type signalExecutor interface {
	ExecuteDue(ctx context.Context, asOf time.Time) (controller.ExecutionSummary, error)
}

type barFetcher interface {
	Fetch(ctx context.Context, symbols []string, timeframe string) ([]marketdata.FetchResult, error)
}

type analysis interface {
	Run(ctx context.Context, symbols []string, asOf time.Time) (*analyzer.Report, error)
}

// Jobs are the scheduled units of work. Both skip non-trading days.
type Jobs struct {
	Trader   paper.Trader
	Monitor  monitor
	Signals  signalExecutor
	Fetcher  barFetcher
	Analyzer analysis
	Symbols  []string
	Market   string

	now    func() time.Time
	logger *logger.Entry
}

func NewJobs(ac *app.Context, market string) *Jobs {
	return &Jobs{
		Trader:   ac.Trader,
		Monitor:  ac.Monitor,
		Signals:  ac.Signals,
		Fetcher:  ac.Fetcher,
		Analyzer: ac.Analyzer,
		Symbols:  ac.Symbols(),
		Market:   market,
		now:      time.Now,
		logger:   ac.Logger.WithField("component", "scheduler"),
	}
}

// Tick snapshots the book, reconciles broker orders, runs the exit policies and
// then executes whatever signals are due, including exits written this tick.
func (j *Jobs) Tick(ctx context.Context) error {
	now := j.now()
	if !risk.IsTradingDay(j.Market, now) {
		j.logger.WithField("market", j.Market).Debug("market closed, tick skipped")
		return nil
	}

	if _, err := j.Trader.TakeSnapshot(ctx); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if s, ok := j.Trader.(paper.Syncer); ok {
		n, err := s.SyncOpen(ctx)
		if err != nil {
			return fmt.Errorf("sync open orders: %w", err)
		}
		j.logger.WithField("orders", n).Debug("open orders synced")
	}

	results, err := j.Monitor.Run(ctx, now)
	if err != nil {
		return fmt.Errorf("position monitor: %w", err)
	}

	sum, err := j.Signals.ExecuteDue(ctx, now)
	if err != nil {
		return fmt.Errorf("execute signals: %w", err)
	}

	j.logger.WithFields(logger.Fields{
		"positions": len(results),
		"filled":    sum.Filled,
		"rejected":  sum.Rejected,
	}).Info("tick complete")
	return nil
}

// Daily refreshes daily bars and reruns the analysis for the watch list.
func (j *Jobs) Daily(ctx context.Context) error {
	now := j.now()
	if !risk.IsTradingDay(j.Market, now) {
		j.logger.WithField("market", j.Market).Debug("market closed, analysis skipped")
		return nil
	}

	if _, err := j.Fetcher.Fetch(ctx, j.Symbols, model.Timeframe1d); err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}

	report, err := j.Analyzer.Run(ctx, j.Symbols, now)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	j.logger.WithFields(logger.Fields{
		"ranked":  len(report.Ranking),
		"signals": len(report.Signals),
	}).Info("daily analysis complete")
	return nil
}

// Scheduler runs jobs on cron expressions in the configured time zone. A job still
// running when its next slot comes up is skipped, and a panicking job is recovered.
type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	logger *logger.Entry
}

func NewScheduler(cfg Config, log *logger.Entry) (*Scheduler, error) {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	log = log.WithField("component", "cron")

	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("load time zone %s: %w", cfg.TimeZone, err)
		}
		loc = l
	}

	cl := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, cfg: cfg, logger: log}, nil
}

// Add schedules fn on a cron expression. Every run gets its own timeout derived from ctx.
func (s *Scheduler) Add(ctx context.Context, name, expr string, fn func(context.Context) error) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(expr, func() {
		jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()

		start := time.Now()
		log := s.logger.WithField("job", name)
		if err := fn(jobCtx); err != nil {
			log.WithError(err).WithField("elapsed", time.Since(start).String()).Error("job failed")
			return
		}
		log.WithField("elapsed", time.Since(start).String()).Debug("job completed")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule job '%s': %w", name, err)
	}
	s.logger.WithFields(logger.Fields{"job": name, "schedule": expr}).Info("job scheduled")
	return id, nil
}

// Run starts the cron loop and blocks until ctx ends, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

// StartScheduler registers the intraday tick and the after-close analysis and
// blocks until ctx is cancelled.
func StartScheduler(ctx context.Context, ac *app.Context) error {
	cfg := GetConfig()

	s, err := NewScheduler(cfg, ac.Logger)
	if err != nil {
		return err
	}

	jobs := NewJobs(ac, cfg.Market)
	if _, err := s.Add(ctx, "tick", cfg.Schedule, jobs.Tick); err != nil {
		return err
	}
	if cfg.AnalyzeSchedule != "" {
		if _, err := s.Add(ctx, "daily_analysis", cfg.AnalyzeSchedule, jobs.Daily); err != nil {
			return err
		}
	}

	ac.StartStream(ctx)
	return s.Run(ctx)
}
