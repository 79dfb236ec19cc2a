package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the paper holding for one symbol. Rows are zeroed on full exit,
// never deleted. HighWaterMark carries the trailing-stop peak across restarts.
type Position struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Symbol        string          `gorm:"size:32;not null;uniqueIndex" json:"symbol"`
	Market        string          `gorm:"size:10" json:"market"`
	Quantity      int64           `gorm:"not null;default:0" json:"quantity"`
	AvgPrice      decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"avg_price"`
	HighWaterMark decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"high_water_mark"`
	EntryDate     *time.Time      `json:"entry_date,omitempty"`
	LastUpdated   time.Time       `json:"last_updated"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Position) TableName() string {
	return "positions"
}

// IsOpen reports whether anything is still held.
func (p Position) IsOpen() bool {
	return p.Quantity > 0
}
