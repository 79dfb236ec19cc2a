package paper

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quantsystem/src/database"
	"quantsystem/src/model"
	"quantsystem/src/repository"
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

// prices is a settable in-memory reference price table.
type prices struct {
	mu sync.Mutex
	m  map[string]decimal.Decimal
}

func newPrices(kv ...interface{}) *prices {
	p := &prices{m: map[string]decimal.Decimal{}}
	for i := 0; i+1 < len(kv); i += 2 {
		p.set(kv[i].(string), kv[i+1].(float64))
	}
	return p
}

func (p *prices) set(symbol string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[symbol] = decimal.NewFromFloat(v)
}

func (p *prices) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[symbol]
	return v, ok, nil
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func assertDecimal(t *testing.T, want float64, got decimal.Decimal, msg ...interface{}) {
	t.Helper()
	require.Truef(t, got.Equal(decimal.NewFromFloat(want)), "want %v got %s %v", want, got.String(), msg)
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Order{}).Count(&n).Error)
	return n
}

func createSignal(t *testing.T, db *gorm.DB, symbol, typ string) *model.TradingSignal {
	t.Helper()
	sig := &model.TradingSignal{
		Symbol:         symbol,
		SignalDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		SignalType:     typ,
		Market:         model.MarketHK,
		SignalStrength: 60,
		SignalPrice:    dec(10),
		Source:         model.SignalSourceAnalyzer,
		Reason:         "test",
	}
	created, err := repository.NewTradingSignalRepository(db).CreateIfAbsent(context.Background(), sig)
	require.NoError(t, err)
	require.True(t, created)
	return sig
}
