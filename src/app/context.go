// Package app wires configuration, storage and engines into one dependency
// container built at startup and passed to commands, the scheduler and the server.
package app

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/analyzer"
	"quantsystem/src/connectors"
	"quantsystem/src/controller"
	"quantsystem/src/database"
	"quantsystem/src/marketdata"
	"quantsystem/src/paper"
	"quantsystem/src/repository"
	"quantsystem/src/sellstrategy"
)

type Config struct {
	Database     database.Config
	Paper        paper.Config
	SellStrategy sellstrategy.Config
	Controller   controller.Config
	Analyzer     analyzer.Config
	MarketData   marketdata.Config
	Connectors   connectors.Config
}

// LoadConfig reads every package configuration from the environment.
func LoadConfig() Config {
	return Config{
		Database:     database.GetConfig(),
		Paper:        paper.GetConfig(),
		SellStrategy: sellstrategy.GetConfig(),
		Controller:   controller.GetConfig(),
		Analyzer:     analyzer.GetConfig(),
		MarketData:   marketdata.GetConfig(),
		Connectors:   connectors.GetConfig(),
	}
}

type Repositories struct {
	Bars       *repository.BarRepository
	Indicators *repository.IndicatorRepository
	Selections *repository.SelectionRepository
	Positions  *repository.PositionRepository
	Orders     *repository.OrderRepository
	Snapshots  *repository.SnapshotRepository
	Signals    *repository.TradingSignalRepository
	Exceptions *repository.ExceptionRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Bars:       repository.NewBarRepository(db),
		Indicators: repository.NewIndicatorRepository(db),
		Selections: repository.NewSelectionRepository(db),
		Positions:  repository.NewPositionRepository(db),
		Orders:     repository.NewOrderRepository(db),
		Snapshots:  repository.NewSnapshotRepository(db),
		Signals:    repository.NewTradingSignalRepository(db),
		Exceptions: repository.NewExceptionRepository(db),
	}
}

// Context is the dependency container. ReadDB serves dashboard reads and may be
// the same handle as DB.
type Context struct {
	Config Config
	DB     *gorm.DB
	ReadDB *gorm.DB
	Logger *logger.Entry

	Repos     Repositories
	ReadRepos Repositories

	Prices   paper.PriceSource
	Stream   *connectors.QuoteStream // nil unless QUOTE_STREAM_URL is set
	Trader   paper.Trader
	Fetcher  *marketdata.Fetcher
	Analyzer *analyzer.Analyzer
	Monitor  *controller.PositionMonitor
	Signals  *controller.SignalController
}

// Open connects the databases named by cfg and builds the container.
func Open(cfg Config, log *logger.Entry) (*Context, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	readDB, err := database.OpenReadOnly(cfg.Database, db)
	if err != nil {
		return nil, err
	}
	return New(cfg, db, readDB, log)
}

// New builds the container over already opened handles.
func New(cfg Config, db, readDB *gorm.DB, log *logger.Entry) (*Context, error) {
	if db == nil {
		return nil, errors.New("app: database handle is required")
	}
	if readDB == nil {
		readDB = db
	}
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}

	c := &Context{
		Config:    cfg,
		DB:        db,
		ReadDB:    readDB,
		Logger:    log,
		Repos:     NewRepositories(db),
		ReadRepos: NewRepositories(readDB),
	}

	var prices paper.PriceSource = marketdata.NewBarPriceSource(c.Repos.Bars)
	if cfg.Connectors.QuoteStreamURL != "" {
		c.Stream = connectors.NewQuoteStream(cfg.Connectors.QuoteStreamURL, cfg.MarketData.Symbols, cfg.MarketData.QuoteMaxAge)
		prices = marketdata.NewStreamPriceSource(c.Stream, prices)
	}
	c.Prices = prices

	switch cfg.Paper.Mode {
	case paper.ModeLocal, "":
		c.Trader = paper.NewEngine(db, prices, cfg.Paper, log)
	case paper.ModeBroker:
		broker := connectors.NewBrokerClientFromConfig(cfg.Connectors)
		c.Trader = paper.NewBrokerEngine(db, prices, broker, cfg.Paper, log)
	default:
		return nil, fmt.Errorf("app: unknown PAPER_MODE %q", cfg.Paper.Mode)
	}

	c.Fetcher = marketdata.NewFetcher(
		marketdata.NewVendorSource(cfg.MarketData.VendorURL, cfg.MarketData.VendorAPIKey, cfg.MarketData.Market, cfg.MarketData.Limit),
		marketdata.NewGoexSource(cfg.MarketData.CryptoURL, cfg.MarketData.Limit),
		c.Repos.Bars,
		cfg.MarketData,
		log,
	)

	a, err := analyzer.New(
		c.Repos.Bars,
		c.Repos.Indicators,
		c.Repos.Selections,
		c.Repos.Signals,
		c.Repos.Positions,
		c.Repos.Exceptions,
		cfg.Analyzer,
		log,
	)
	if err != nil {
		return nil, err
	}
	c.Analyzer = a

	c.Monitor = controller.NewPositionMonitor(
		c.Repos.Positions,
		c.Repos.Bars,
		c.Repos.Signals,
		c.Repos.Exceptions,
		sellstrategy.NewEvaluator(cfg.SellStrategy, log),
		prices,
		cfg.Controller,
		log,
	)
	c.Signals = controller.NewSignalController(c.Trader, c.Repos.Signals, c.Repos.Exceptions, cfg.Controller, log)

	return c, nil
}

// Symbols is the normalized configured watch list.
func (c *Context) Symbols() []string {
	return controller.NormalizeSymbols(c.Config.MarketData.Symbols)
}

// StartStream runs the quote stream in the background until ctx ends.
func (c *Context) StartStream(ctx context.Context) {
	if c.Stream == nil {
		return
	}
	go func() {
		if err := c.Stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.WithError(err).Error("Quote stream stopped")
		}
	}()
}

// Close releases the database handles.
func (c *Context) Close() {
	closeDB := func(db *gorm.DB) {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if c.ReadDB != nil && c.ReadDB != c.DB {
		closeDB(c.ReadDB)
	}
	closeDB(c.DB)
}
