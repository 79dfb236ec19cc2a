package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/model"
)

// SnapshotRepository appends and reads portfolio valuations.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) WithDB(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Append(ctx context.Context, snap *model.PortfolioSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SnapshotRepository",
			"op":   "Append",
		}).WithError(err).Error("Failed to append portfolio snapshot")
		return err
	}
	return nil
}

// Latest returns the most recent snapshot or (nil, nil) on a fresh account.
func (r *SnapshotRepository) Latest(ctx context.Context) (*model.PortfolioSnapshot, error) {
	var snap model.PortfolioSnapshot

	err := r.db.WithContext(ctx).
		Order("id DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &snap, nil
}

// Curve returns snapshots taken at or after since, oldest first.
func (r *SnapshotRepository) Curve(ctx context.Context, since time.Time, limit int) ([]model.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = 500
	}

	var snaps []model.PortfolioSnapshot
	err := r.db.WithContext(ctx).
		Where("taken_at >= ?", since).
		Order("id ASC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}

	return snaps, nil
}
