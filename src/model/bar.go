package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	Timeframe1m = "1m"
	Timeframe1d = "1d"
)

const (
	MarketHK     = "HK"
	MarketUS     = "US"
	MarketCN     = "CN"
	MarketCrypto = "CRYPTO"
)

// Bar is one OHLCV observation for a symbol and timeframe.
type Bar struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"size:32;not null;uniqueIndex:idx_bars_symbol_tf_dt,priority:1" json:"symbol"`
	Timeframe string          `gorm:"size:8;not null;uniqueIndex:idx_bars_symbol_tf_dt,priority:2" json:"timeframe"`
	Datetime  time.Time       `gorm:"not null;uniqueIndex:idx_bars_symbol_tf_dt,priority:3" json:"datetime"`
	Market    string          `gorm:"size:10;index" json:"market"`
	Open      decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"open"`
	High      decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"high"`
	Low       decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"low"`
	Close     decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"close"`
	Volume    decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Bar) TableName() string {
	return "bars"
}
