package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quantsystem/src/model"
)

// TradingSignalRepository handles persisted buy/sell signals and their one-shot claim.
type TradingSignalRepository struct {
	db *gorm.DB
}

func NewTradingSignalRepository(db *gorm.DB) *TradingSignalRepository {
	return &TradingSignalRepository{db: db}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *TradingSignalRepository) WithDB(db *gorm.DB) *TradingSignalRepository {
	return &TradingSignalRepository{db: db}
}

// CreateIfAbsent inserts the signal unless one already exists for the same
// (symbol, signal_date, signal_type). It reports whether a row was written.
func (r *TradingSignalRepository) CreateIfAbsent(ctx context.Context, sig *model.TradingSignal) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sig)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradingSignalRepository",
			"op":     "CreateIfAbsent",
			"symbol": sig.Symbol,
			"type":   sig.SignalType,
		}).WithError(res.Error).Error("Failed to create trading signal")
		return false, res.Error
	}

	created := res.RowsAffected > 0
	logger.WithFields(map[string]interface{}{
		"repo":    "TradingSignalRepository",
		"op":      "CreateIfAbsent",
		"symbol":  sig.Symbol,
		"type":    sig.SignalType,
		"created": created,
	}).Debug("Trading signal stored")

	return created, nil
}

// FindByID fetches a single trading signal by its primary ID.
// Returns (nil, nil) if not found.
func (r *TradingSignalRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.TradingSignal, error) {

	var signal model.TradingSignal

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&signal).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "TradingSignalRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Trading signal not found")
			return nil, nil // not found is not an error
		}

		logger.WithFields(map[string]interface{}{
			"repo": "TradingSignalRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trading signal by ID")

		return nil, err
	}

	return &signal, nil
}

// FindByKey fetches the signal stored under symbol, date and type.
// Returns (nil, nil) if not found.
func (r *TradingSignalRepository) FindByKey(ctx context.Context, symbol string, date time.Time, signalType string) (*model.TradingSignal, error) {
	var signal model.TradingSignal
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND signal_date = ? AND signal_type = ?", symbol, date, signalType).
		First(&signal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "TradingSignalRepository",
			"op":     "FindByKey",
			"symbol": symbol,
			"type":   signalType,
		}).WithError(err).Error("Failed to fetch trading signal by key")
		return nil, err
	}
	return &signal, nil
}

// FindDue lists unexecuted signals dated at or before asOf, oldest first.
func (r *TradingSignalRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]model.TradingSignal, error) {
	if limit <= 0 {
		limit = 100
	}

	var signals []model.TradingSignal
	err := r.db.WithContext(ctx).
		Where("is_executed = ? AND signal_date <= ?", false, asOf).
		Order("signal_date ASC, id ASC").
		Limit(limit).
		Find(&signals).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradingSignalRepository",
			"op":   "FindDue",
		}).WithError(err).Error("Failed to fetch due trading signals")
		return nil, err
	}

	return signals, nil
}

// Claim flips is_executed from false to true. Exactly one caller gets true for a
// given signal; everyone else sees false.
func (r *TradingSignalRepository) Claim(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TradingSignal{}).
		Where("id = ? AND is_executed = ?", id, false).
		Updates(map[string]interface{}{
			"is_executed": true,
			"executed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AttachOrder links a claimed signal to the order it produced.
func (r *TradingSignalRepository) AttachOrder(ctx context.Context, id uint, orderID uint) error {
	return r.db.WithContext(ctx).
		Model(&model.TradingSignal{}).
		Where("id = ?", id).
		Update("order_id", orderID).Error
}
