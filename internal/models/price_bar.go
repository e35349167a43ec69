package models

import (
	"time"

	"gorm.io/gorm"
)

// PriceBar is one persisted OHLCV point of a symbol's price history.
type PriceBar struct {
	gorm.Model
	Symbol    string    `gorm:"index:idx_symbol_ts" json:"symbol"`
	Timestamp time.Time `gorm:"index:idx_symbol_ts" json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}
