package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quantsystem/src/model"
)

var ErrInvalidInterval = errors.New("invalid interval. allowed: 5m,15m,30m,60m")

// BarRepository stores OHLCV bars keyed by (symbol, timeframe, datetime).
type BarRepository struct {
	db *gorm.DB
}

func NewBarRepository(db *gorm.DB) *BarRepository {
	return &BarRepository{db: db}
}

func (r *BarRepository) WithDB(db *gorm.DB) *BarRepository {
	return &BarRepository{db: db}
}

// UpsertMany inserts bars, overwriting prices and volume of existing keys.
func (r *BarRepository) UpsertMany(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "datetime"}},
			DoUpdates: clause.AssignmentColumns([]string{"market", "open", "high", "low", "close", "volume", "updated_at"}),
		}).
		CreateInBatches(bars, 500).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "BarRepository",
			"op":    "UpsertMany",
			"count": len(bars),
		}).WithError(err).Error("Failed to upsert bars")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "BarRepository",
		"op":     "UpsertMany",
		"symbol": bars[0].Symbol,
		"count":  len(bars),
	}).Debug("Bars upserted")

	return nil
}

// FetchRecent returns up to limit bars at or before to, in ascending time order.
func (r *BarRepository) FetchRecent(
	ctx context.Context,
	symbol string,
	timeframe string,
	to time.Time,
	limit int,
) ([]model.Bar, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []model.Bar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND datetime <= ?", symbol, timeframe, to).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// FetchSince returns every bar at or after since, ascending.
func (r *BarRepository) FetchSince(
	ctx context.Context,
	symbol string,
	timeframe string,
	since time.Time,
) ([]model.Bar, error) {
	var rows []model.Bar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND datetime >= ?", symbol, timeframe, since).
		Order("datetime ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Latest returns the newest bar of any timeframe, or (nil, nil) when none is stored.
func (r *BarRepository) Latest(ctx context.Context, symbol string) (*model.Bar, error) {
	var bar model.Bar
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("datetime DESC").
		First(&bar).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "BarRepository",
			"op":     "Latest",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch latest bar")
		return nil, err
	}
	return &bar, nil
}

// FetchRecentAgg builds limitAgg intraday bars of the given interval out of stored 1m bars.
func (r *BarRepository) FetchRecentAgg(
	ctx context.Context,
	symbol string,
	to time.Time,
	interval time.Duration,
	limitAgg int,
) ([]model.Bar, error) {
	if limitAgg <= 0 {
		limitAgg = 200
	}

	mult := int(interval.Minutes())
	if mult <= 0 {
		return nil, ErrInvalidInterval
	}
	limit1m := limitAgg*mult + mult // small buffer

	rows1m, err := r.FetchRecent(ctx, symbol, model.Timeframe1m, to, limit1m)
	if err != nil {
		return nil, err
	}

	agg, err := AggregateFrom1m(rows1m, interval)
	if err != nil {
		return nil, err
	}

	// keep only the most recent limitAgg (agg is ascending)
	if len(agg) > limitAgg {
		agg = agg[len(agg)-limitAgg:]
	}
	return agg, nil
}

func bucketStart(t time.Time, interval time.Duration) time.Time {
	// Align to wall-clock boundaries: 12:07 with 5m => 12:05
	secs := t.Unix()
	step := int64(interval.Seconds())
	return time.Unix((secs/step)*step, 0).UTC()
}

// AggregateFrom1m folds ascending 1m bars into interval buckets. The bucket keeps
// the first open, last close, extreme high/low and summed volume.
func AggregateFrom1m(
	candles []model.Bar,
	interval time.Duration,
) ([]model.Bar, error) {
	if interval != 5*time.Minute &&
		interval != 15*time.Minute &&
		interval != 30*time.Minute &&
		interval != 60*time.Minute {
		return nil, ErrInvalidInterval
	}

	if len(candles) == 0 {
		return []model.Bar{}, nil
	}

	out := make([]model.Bar, 0, len(candles)/int(interval.Minutes())+2)

	var cur model.Bar
	var curBucket time.Time
	hasCur := false

	for _, c := range candles {
		b := bucketStart(c.Datetime, interval)

		if !hasCur || !b.Equal(curBucket) {
			if hasCur {
				out = append(out, cur)
			}
			curBucket = b
			hasCur = true
			cur = model.Bar{
				Symbol:    c.Symbol,
				Market:    c.Market,
				Timeframe: fmt.Sprintf("%dm", int(interval.Minutes())),
				Datetime:  curBucket,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			}
			continue
		}

		if c.High.GreaterThan(cur.High) {
			cur.High = c.High
		}
		if c.Low.LessThan(cur.Low) {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume = cur.Volume.Add(c.Volume)
	}

	if hasCur {
		out = append(out, cur)
	}

	return out, nil
}
