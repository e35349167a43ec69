package models

import (
	"time"

	"gorm.io/gorm"
)

// SignalRecord is a persisted trading signal. Superseded, never updated,
// by the next cycle's record for the same symbol.
type SignalRecord struct {
	gorm.Model
	Symbol     string    `gorm:"index" json:"symbol"`
	Decision   string    `json:"decision"` // "buy", "sell" or "hold"
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}
