package model

import "time"

// Selection is a scored candidate for one symbol on one date. Only the latest
// date per symbol is considered current.
type Selection struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Symbol         string    `gorm:"size:32;not null;uniqueIndex:idx_selections_symbol_date,priority:1" json:"symbol"`
	Date           time.Time `gorm:"not null;uniqueIndex:idx_selections_symbol_date,priority:2;index" json:"date"`
	Market         string    `gorm:"size:10" json:"market"`
	TotalScore     int       `json:"total_score"`
	TechnicalScore int       `json:"technical_score"`
	VolumeScore    int       `json:"volume_score"`
	TrendScore     int       `json:"trend_score"`
	PatternScore   int       `json:"pattern_score"`
	Rank           int       `json:"rank"`
	BuySignal      string    `gorm:"size:12" json:"buy_signal"`
	BuyStrength    int       `json:"buy_strength"`
	Reasons        string    `gorm:"type:text" json:"reasons"`
	CurrentPrice   float64   `json:"current_price"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Selection) TableName() string {
	return "selections"
}
