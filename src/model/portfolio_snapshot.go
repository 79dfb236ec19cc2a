package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SnapshotReasonInit = "init"
	SnapshotReasonFill = "fill"
	SnapshotReasonTick = "tick"
)

// PortfolioSnapshot is an append-only account valuation. The latest row seeds
// the cash balance for the next engine operation.
type PortfolioSnapshot struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	TakenAt    time.Time       `gorm:"not null;index" json:"taken_at"`
	Cash       decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"cash"`
	Equity     decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"equity"`
	TotalValue decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"total_value"`
	Reason     string          `gorm:"size:10" json:"reason"`
	OrderID    *uint           `json:"order_id,omitempty"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
