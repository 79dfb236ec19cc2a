package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quantsystem/src/analyzer"
	"quantsystem/src/connectors"
	"quantsystem/src/controller"
	"quantsystem/src/database"
	"quantsystem/src/marketdata"
	"quantsystem/src/paper"
	"quantsystem/src/sellstrategy"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func nullLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func testConfig() Config {
	return Config{
		Paper:        paper.DefaultConfig(),
		SellStrategy: sellstrategy.DefaultConfig(),
		Controller:   controller.DefaultConfig(),
		Analyzer:     analyzer.DefaultConfig(),
		MarketData: marketdata.Config{
			Symbols:     []string{"700.hk", "0700.HK", "9988.hk"},
			Market:      "HK",
			HistoryDays: 30,
			Limit:       100,
			QuoteMaxAge: 2 * time.Minute,
		},
	}
}

func TestNewBuildsLocalEngine(t *testing.T) {
	c, err := New(testConfig(), newTestDB(t), nil, nullLog())
	require.NoError(t, err)

	assert.IsType(t, &paper.Engine{}, c.Trader)
	assert.IsType(t, &marketdata.BarPriceSource{}, c.Prices)
	assert.Nil(t, c.Stream)
	assert.Same(t, c.DB, c.ReadDB)
	assert.NotNil(t, c.Analyzer)
	assert.NotNil(t, c.Monitor)
	assert.NotNil(t, c.Signals)
	assert.Equal(t, []string{"0700.HK", "9988.HK"}, c.Symbols())
}

func TestNewBuildsBrokerEngineWithStream(t *testing.T) {
	cfg := testConfig()
	cfg.Paper.Mode = paper.ModeBroker
	cfg.Connectors = connectors.Config{
		BrokerBaseURL:  "http://127.0.0.1:1",
		QuoteStreamURL: "ws://127.0.0.1:1/quotes",
	}

	c, err := New(cfg, newTestDB(t), nil, nullLog())
	require.NoError(t, err)

	assert.IsType(t, &paper.BrokerEngine{}, c.Trader)
	_, syncs := c.Trader.(paper.Syncer)
	assert.True(t, syncs)
	assert.NotNil(t, c.Stream)
	assert.IsType(t, &marketdata.StreamPriceSource{}, c.Prices)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Paper.Mode = "live"
	_, err := New(cfg, newTestDB(t), nil, nullLog())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Analyzer.MinBuySignal = "SELL"
	_, err = New(cfg, newTestDB(t), nil, nullLog())
	assert.Error(t, err)

	_, err = New(testConfig(), nil, nil, nullLog())
	assert.Error(t, err)
}
