package models

import "time"

// Trade actions and statuses.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"

	OrderTypeMarket = "market"

	StatusExecuted = "executed"
)

// Trade is an append-only ledger entry for a single execution.
// Rows are never mutated after creation.
type Trade struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"index;not null" json:"symbol"`
	Action    string    `gorm:"not null" json:"action"` // "buy" or "sell"
	Quantity  float64   `gorm:"not null" json:"quantity"`
	Price     float64   `gorm:"not null" json:"price"`
	OrderType string    `gorm:"default:market" json:"order_type"`
	Status    string    `gorm:"default:executed" json:"status"`
	PnL       float64   `gorm:"column:pnl" json:"pnl"` // realized, sells only
	Auto      bool      `json:"auto"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
