package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SignalTypeBuy  = "BUY"
	SignalTypeSell = "SELL"

	SignalSourceAnalyzer     = "analyzer"
	SignalSourceSellStrategy = "sell_strategy"
)

// TradingSignal is a persisted buy/sell instruction. It is consumed at most
// once: IsExecuted flips to true in the same transaction that places its order.
type TradingSignal struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Symbol         string          `gorm:"size:32;not null;uniqueIndex:idx_signals_symbol_date_type,priority:1" json:"symbol"`
	SignalDate     time.Time       `gorm:"not null;uniqueIndex:idx_signals_symbol_date_type,priority:2" json:"signal_date"`
	SignalType     string          `gorm:"size:4;not null;uniqueIndex:idx_signals_symbol_date_type,priority:3" json:"signal_type"`
	Market         string          `gorm:"size:10" json:"market"`
	SignalStrength float64         `json:"signal_strength"`
	SignalPrice    decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"signal_price"`
	Source         string          `gorm:"size:30" json:"source"`
	Reason         string          `gorm:"type:text" json:"reason"`
	IsExecuted     bool            `gorm:"not null;default:false;index" json:"is_executed"`
	ExecutedAt     *time.Time      `json:"executed_at,omitempty"`
	OrderID        *uint           `json:"order_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (TradingSignal) TableName() string {
	return "trading_signals"
}
