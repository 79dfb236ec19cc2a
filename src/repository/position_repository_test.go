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

func TestPositionRepositoryHighWaterMarkOnlyRises(t *testing.T) {
	db := newTestDB(t)
	repo := NewPositionRepository(db)
	ctx := context.Background()
	entry := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	pos := &model.Position{
		Symbol:        "0700.HK",
		Quantity:      200,
		AvgPrice:      decimal.NewFromInt(100),
		HighWaterMark: decimal.NewFromInt(100),
		EntryDate:     &entry,
		LastUpdated:   entry,
	}
	require.NoError(t, repo.Save(ctx, pos))

	require.NoError(t, repo.UpdateHighWaterMark(ctx, "0700.HK", decimal.NewFromInt(120)))
	require.NoError(t, repo.UpdateHighWaterMark(ctx, "0700.HK", decimal.NewFromInt(110)))

	got, err := repo.FindBySymbol(ctx, "0700.HK")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.HighWaterMark.Equal(decimal.NewFromInt(120)))

	open, err := repo.FindOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	got.Quantity = 0
	require.NoError(t, repo.Save(ctx, got))
	open, err = repo.FindOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	missing, err := repo.FindBySymbol(ctx, "0005.HK")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSelectionRepositoryLatestRanking(t *testing.T) {
	db := newTestDB(t)
	repo := NewSelectionRepository(db)
	ctx := context.Background()
	day1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, repo.SaveAll(ctx, []model.Selection{
		{Symbol: "A", Date: day1, TotalScore: 80, Rank: 1},
		{Symbol: "B", Date: day1, TotalScore: 60, Rank: 2},
	}))
	require.NoError(t, repo.SaveAll(ctx, []model.Selection{
		{Symbol: "B", Date: day2, TotalScore: 70, Rank: 1},
		{Symbol: "A", Date: day2, TotalScore: 50, Rank: 2},
	}))
	// rerunning the same day overwrites instead of duplicating
	require.NoError(t, repo.SaveAll(ctx, []model.Selection{
		{Symbol: "B", Date: day2, TotalScore: 75, Rank: 1},
	}))

	got, err := repo.LatestRanking(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Symbol)
	assert.Equal(t, 75, got[0].TotalScore)
	assert.Equal(t, "A", got[1].Symbol)
}

func TestSnapshotRepositoryLatest(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	none, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	at := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	for i, cash := range []int64{1_000_000, 990_000} {
		require.NoError(t, repo.Append(ctx, &model.PortfolioSnapshot{
			TakenAt:    at.Add(time.Duration(i) * time.Hour),
			Cash:       decimal.NewFromInt(cash),
			TotalValue: decimal.NewFromInt(1_000_000),
		}))
	}

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Cash.Equal(decimal.NewFromInt(990_000)))

	curve, err := repo.Curve(ctx, at.Add(30*time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, curve, 1)
}
