package models

import "gorm.io/gorm"

// PortfolioState carries the aggregate ledger figures across restarts.
// There is only ever one row.
type PortfolioState struct {
	gorm.Model
	Cash        float64 `gorm:"not null" json:"cash"`
	RealizedPnL float64 `gorm:"column:realized_pnl" json:"realized_pnl"`
}
