package models

import "gorm.io/gorm"

// Instrument is a watchlisted symbol. Immutable once registered.
type Instrument struct {
	gorm.Model
	Symbol     string `gorm:"uniqueIndex;not null" json:"symbol"`
	AssetClass string `gorm:"default:equity" json:"asset_class"`
}
