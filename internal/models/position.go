package models

import "time"

// Position is the persisted holding for one symbol.
// Created on first buy, deleted when the quantity reaches zero.
type Position struct {
	Symbol    string    `gorm:"primaryKey" json:"symbol"`
	Quantity  float64   `gorm:"not null" json:"quantity"`
	AvgPrice  float64   `gorm:"not null" json:"avg_price"`
	UpdatedAt time.Time `json:"updated_at"`
}
