package marketdata

import (
	"context"
	"time"
)

// PricePoint is the latest known market state of one symbol. Points are
// superseded by later fetches, never mutated in place.
type PricePoint struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	Timestamp     time.Time `json:"timestamp"`

	// Stale is set when the point is served past its TTL because the
	// provider could not supply a fresh one.
	Stale bool `json:"stale,omitempty"`
}

// Provider is the external quote source consumed by the price cache.
// Assumed rate-limited and occasionally unavailable.
type Provider interface {
	FetchQuote(ctx context.Context, symbol string) (PricePoint, error)
	FetchHistory(ctx context.Context, symbol, period, interval string) ([]PricePoint, error)
}

// SentimentProvider is the optional news/sentiment source. A nil provider
// degrades signal generation to indicator-only scoring.
type SentimentProvider interface {
	FetchSentiment(ctx context.Context, symbol string) (float64, error)
}
