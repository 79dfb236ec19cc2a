package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quantsystem/src/model"
)

// SelectionRepository stores daily ranked candidates.
type SelectionRepository struct {
	db *gorm.DB
}

func NewSelectionRepository(db *gorm.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

func (r *SelectionRepository) WithDB(db *gorm.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// SaveAll upserts one analysis run's selections keyed by (symbol, date).
func (r *SelectionRepository) SaveAll(ctx context.Context, sels []model.Selection) error {
	if len(sels) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"market", "total_score", "technical_score", "volume_score", "trend_score",
				"pattern_score", "rank", "buy_signal", "buy_strength", "reasons", "current_price", "updated_at",
			}),
		}).
		Create(&sels).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SelectionRepository",
			"op":    "SaveAll",
			"count": len(sels),
		}).WithError(err).Error("Failed to save selections")
	}
	return err
}

// LatestRanking returns the selections of the most recent analysis date by rank.
func (r *SelectionRepository) LatestRanking(ctx context.Context, limit int) ([]model.Selection, error) {
	if limit <= 0 {
		limit = 50
	}

	var sels []model.Selection
	err := r.db.WithContext(ctx).
		Where("date = (?)", r.db.Model(&model.Selection{}).Select("MAX(date)")).
		Order("rank ASC").
		Limit(limit).
		Find(&sels).Error
	if err != nil {
		return nil, err
	}
	return sels, nil
}
