package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type openPosition struct {
	ID            uint
	Symbol        string
	AvgPrice      float64
	HighWaterMark float64
	EntryDate     sql.NullTime
}

// backfillHighWaterMark seeds the trailing-stop peak of positions opened before the
// column existed. The peak is rebuilt from stored closes since entry so a restart
// does not reset it to the current price.
func backfillHighWaterMark(db *gorm.DB) error {
	var rows []openPosition
	if err := db.Table("positions").
		Select("id, symbol, avg_price, high_water_mark, entry_date").
		Where("quantity > 0 AND high_water_mark = 0").
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	for _, p := range rows {
		since := time.Time{}
		if p.EntryDate.Valid {
			since = p.EntryDate.Time
		}

		var peak sql.NullFloat64
		if err := db.Table("bars").
			Select("MAX(close)").
			Where("symbol = ? AND datetime >= ?", p.Symbol, since).
			Row().Scan(&peak); err != nil {
			return fmt.Errorf("max close for %s: %w", p.Symbol, err)
		}

		hwm := p.AvgPrice
		if peak.Valid && peak.Float64 > hwm {
			hwm = peak.Float64
		}

		if err := db.Table("positions").
			Where("id = ?", p.ID).
			Update("high_water_mark", hwm).Error; err != nil {
			return fmt.Errorf("update high_water_mark for %s: %w", p.Symbol, err)
		}
	}

	return nil
}

// backfillRequestedQuantity fills requested_quantity for orders written before
// the engine tracked the caller's original request separately.
func backfillRequestedQuantity(db *gorm.DB) error {
	return db.Exec("UPDATE orders SET requested_quantity = quantity WHERE requested_quantity = 0 OR requested_quantity IS NULL").Error
}
