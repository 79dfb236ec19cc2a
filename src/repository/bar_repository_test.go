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

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func minuteBar(at time.Time, o, h, l, c, v float64) model.Bar {
	return model.Bar{
		Symbol:    "BTCUSDT",
		Timeframe: model.Timeframe1m,
		Datetime:  at,
		Open:      d(o),
		High:      d(h),
		Low:       d(l),
		Close:     d(c),
		Volume:    d(v),
	}
}

func TestBarRepositoryUpsertOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := NewBarRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bars := []model.Bar{
		{Symbol: "0700.HK", Timeframe: model.Timeframe1d, Datetime: base, Open: d(10), High: d(11), Low: d(9), Close: d(10.5), Volume: d(1000)},
		{Symbol: "0700.HK", Timeframe: model.Timeframe1d, Datetime: base.AddDate(0, 0, 1), Open: d(10.5), High: d(12), Low: d(10), Close: d(11.5), Volume: d(1200)},
	}
	require.NoError(t, repo.UpsertMany(ctx, bars))

	revised := []model.Bar{
		{Symbol: "0700.HK", Timeframe: model.Timeframe1d, Datetime: base.AddDate(0, 0, 1), Open: d(10.5), High: d(12), Low: d(10), Close: d(11.8), Volume: d(1500)},
	}
	require.NoError(t, repo.UpsertMany(ctx, revised))

	got, err := repo.FetchRecent(ctx, "0700.HK", model.Timeframe1d, base.AddDate(0, 0, 5), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Datetime.Equal(base))
	assert.True(t, got[1].Close.Equal(d(11.8)))
	assert.True(t, got[1].Volume.Equal(d(1500)))

	latest, err := repo.Latest(ctx, "0700.HK")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Close.Equal(d(11.8)))

	since, err := repo.FetchSince(ctx, "0700.HK", model.Timeframe1d, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, since, 1)

	none, err := repo.Latest(ctx, "9988.HK")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAggregateFrom1m(t *testing.T) {
	start := time.Date(2024, 1, 2, 12, 3, 0, 0, time.UTC)
	candles := []model.Bar{
		minuteBar(start, 10, 11, 9, 10.5, 1),
		minuteBar(start.Add(time.Minute), 10.5, 12, 10, 11, 2),
		minuteBar(start.Add(2*time.Minute), 11, 11.5, 8, 9, 3),
		minuteBar(start.Add(3*time.Minute), 9, 10, 9, 9.5, 4),
	}

	agg, err := AggregateFrom1m(candles, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, agg, 2)

	// 12:03 and 12:04 fall into the 12:00 bucket
	assert.True(t, agg[0].Datetime.Equal(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)))
	assert.True(t, agg[0].Open.Equal(d(10)))
	assert.True(t, agg[0].High.Equal(d(12)))
	assert.True(t, agg[0].Close.Equal(d(11)))
	assert.True(t, agg[0].Volume.Equal(d(3)))
	assert.Equal(t, "5m", agg[0].Timeframe)

	assert.True(t, agg[1].Low.Equal(d(8)))
	assert.True(t, agg[1].Close.Equal(d(9.5)))
	assert.True(t, agg[1].Volume.Equal(d(7)))

	_, err = AggregateFrom1m(candles, 7*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
