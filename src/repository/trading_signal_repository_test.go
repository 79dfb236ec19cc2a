package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsystem/src/model"
)

func TestTradingSignalCreateIfAbsentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewTradingSignalRepository(db)
	ctx := context.Background()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	sig := &model.TradingSignal{
		Symbol:      "0700.HK",
		SignalDate:  day,
		SignalType:  model.SignalTypeBuy,
		SignalPrice: decimal.NewFromInt(300),
		Source:      model.SignalSourceAnalyzer,
	}
	created, err := repo.CreateIfAbsent(ctx, sig)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &model.TradingSignal{Symbol: "0700.HK", SignalDate: day, SignalType: model.SignalTypeBuy}
	created, err = repo.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	other := &model.TradingSignal{Symbol: "0700.HK", SignalDate: day, SignalType: model.SignalTypeSell}
	created, err = repo.CreateIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTradingSignalClaimOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewTradingSignalRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	sig := &model.TradingSignal{Symbol: "0005.HK", SignalDate: now, SignalType: model.SignalTypeBuy}
	_, err := repo.CreateIfAbsent(ctx, sig)
	require.NoError(t, err)

	ok, err := repo.Claim(ctx, sig.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, sig.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AttachOrder(ctx, sig.ID, 9))

	got, err := repo.FindByID(ctx, sig.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsExecuted)
	require.NotNil(t, got.ExecutedAt)
	assert.True(t, got.ExecutedAt.Equal(now))
	assert.Equal(t, ptrUint(9), got.OrderID)
}

func TestTradingSignalFindDue(t *testing.T) {
	db := newTestDB(t)
	repo := NewTradingSignalRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	for i, sym := range []string{"A", "B", "C"} {
		_, err := repo.CreateIfAbsent(ctx, &model.TradingSignal{
			Symbol:     sym,
			SignalDate: now.Add(time.Duration(i-1) * 24 * time.Hour),
			SignalType: model.SignalTypeBuy,
		})
		require.NoError(t, err)
	}

	// A is yesterday, B today, C tomorrow; claim B.
	due, err := repo.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "A", due[0].Symbol)

	_, err = repo.Claim(ctx, due[1].ID, now)
	require.NoError(t, err)

	due, err = repo.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "A", due[0].Symbol)

	missing, err := repo.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTradingSignalFindByKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewTradingSignalRepository(db)
	ctx := context.Background()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	sig := &model.TradingSignal{Symbol: "0700.HK", SignalDate: day, SignalType: model.SignalTypeSell, Source: model.SignalSourceSellStrategy}
	created, err := repo.CreateIfAbsent(ctx, sig)
	require.NoError(t, err)
	require.True(t, created)

	got, err := repo.FindByKey(ctx, "0700.HK", day, model.SignalTypeSell)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sig.ID, got.ID)
	assert.False(t, got.IsExecuted)

	missing, err := repo.FindByKey(ctx, "0700.HK", day, model.SignalTypeBuy)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.FindByKey(ctx, "0700.HK", day.AddDate(0, 0, 1), model.SignalTypeSell)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
