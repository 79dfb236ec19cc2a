package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quantsystem/src/model"
)

var indicatorColumns = []string{
	"close", "ma5", "ma10", "ma20", "ma60", "ema12", "ema26",
	"macd", "macd_signal", "macd_hist", "rsi", "kdj_k", "kdj_d", "kdj_j",
	"boll_upper", "boll_middle", "boll_lower", "atr", "obv", "volume_ma5", "volume_ma10",
}

type IndicatorRepository struct {
	db *gorm.DB
}

func NewIndicatorRepository(db *gorm.DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

func (r *IndicatorRepository) WithDB(db *gorm.DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

// SaveRows upserts computed rows keyed by (symbol, date). Recomputation after a
// backfill overwrites earlier values.
func (r *IndicatorRepository) SaveRows(ctx context.Context, rows []model.IndicatorRecord) error {
	if len(rows) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns(indicatorColumns),
		}).
		CreateInBatches(rows, 500).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "IndicatorRepository",
			"op":     "SaveRows",
			"symbol": rows[0].Symbol,
			"count":  len(rows),
		}).WithError(err).Error("Failed to save indicator rows")
	}
	return err
}

// Latest returns the newest row for the symbol or (nil, nil).
func (r *IndicatorRepository) Latest(ctx context.Context, symbol string) (*model.IndicatorRecord, error) {
	var rec model.IndicatorRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
