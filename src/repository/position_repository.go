package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/model"
)

// PositionRepository persists paper holdings, one row per symbol.
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindBySymbol returns (nil, nil) when the symbol was never held.
func (r *PositionRepository) FindBySymbol(ctx context.Context, symbol string) (*model.Position, error) {
	var pos model.Position

	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&pos).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch position")

		return nil, err
	}

	return &pos, nil
}

// FindOpen returns every position with a positive quantity, ordered by symbol.
func (r *PositionRepository) FindOpen(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("quantity > 0").
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindOpen",
		}).WithError(err).Error("Failed to fetch open positions")

		return nil, err
	}

	return positions, nil
}

// Save inserts or fully updates the position.
func (r *PositionRepository) Save(ctx context.Context, pos *model.Position) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "PositionRepository",
		"op":     "Save",
		"symbol": pos.Symbol,
		"qty":    pos.Quantity,
		"avg":    pos.AvgPrice.String(),
	}).Debug("Saving position")

	return r.db.WithContext(ctx).Save(pos).Error
}

// UpdateHighWaterMark stores the trailing-stop peak. It never lowers a stored value.
func (r *PositionRepository) UpdateHighWaterMark(ctx context.Context, symbol string, hwm decimal.Decimal) error {
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("symbol = ? AND quantity > 0 AND high_water_mark < ?", symbol, hwm).
		Updates(map[string]interface{}{
			"high_water_mark": hwm,
			"last_updated":    time.Now().UTC(),
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "UpdateHighWaterMark",
			"symbol": symbol,
		}).WithError(err).Error("Failed to update high water mark")
	}
	return err
}
