package model

import (
	"database/sql"
	"time"
)

// IndicatorRecord is the persisted form of one indicator row, keyed by (symbol, date).
// Columns stay NULL until enough history exists.
type IndicatorRecord struct {
	ID     uint      `gorm:"primaryKey"`
	Symbol string    `gorm:"size:32;not null;uniqueIndex:idx_indicators_symbol_date,priority:1"`
	Date   time.Time `gorm:"not null;uniqueIndex:idx_indicators_symbol_date,priority:2"`
	Close  float64   `gorm:"column:close"`

	MA5        sql.NullFloat64 `gorm:"column:ma5"`
	MA10       sql.NullFloat64 `gorm:"column:ma10"`
	MA20       sql.NullFloat64 `gorm:"column:ma20"`
	MA60       sql.NullFloat64 `gorm:"column:ma60"`
	EMA12      sql.NullFloat64 `gorm:"column:ema12"`
	EMA26      sql.NullFloat64 `gorm:"column:ema26"`
	MACD       sql.NullFloat64 `gorm:"column:macd"`
	MACDSignal sql.NullFloat64 `gorm:"column:macd_signal"`
	MACDHist   sql.NullFloat64 `gorm:"column:macd_hist"`
	RSI        sql.NullFloat64 `gorm:"column:rsi"`
	KDJK       sql.NullFloat64 `gorm:"column:kdj_k"`
	KDJD       sql.NullFloat64 `gorm:"column:kdj_d"`
	KDJJ       sql.NullFloat64 `gorm:"column:kdj_j"`
	BollUpper  sql.NullFloat64 `gorm:"column:boll_upper"`
	BollMiddle sql.NullFloat64 `gorm:"column:boll_middle"`
	BollLower  sql.NullFloat64 `gorm:"column:boll_lower"`
	ATR        sql.NullFloat64 `gorm:"column:atr"`
	OBV        sql.NullFloat64 `gorm:"column:obv"`
	VolumeMA5  sql.NullFloat64 `gorm:"column:volume_ma5"`
	VolumeMA10 sql.NullFloat64 `gorm:"column:volume_ma10"`

	CreatedAt time.Time
}

func (IndicatorRecord) TableName() string {
	return "indicators"
}
