package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/models"
)

// Cache holds the latest known price per symbol with a freshness TTL and a
// bounded append-only history used for indicator computation. It is the sole
// owner of the price history table; other components read through it.
type Cache struct {
	provider     Provider
	logger       *zap.Logger
	db           *gorm.DB // nil disables bar persistence
	ttl          time.Duration
	historyLimit int

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
}

type entry struct {
	point     PricePoint
	fetchedAt time.Time
	history   []PricePoint
}

// NewCache creates a price cache over the given provider.
func NewCache(cfg *config.Market, provider Provider, db *gorm.DB, logger *zap.Logger) *Cache {
	return &Cache{
		provider:     provider,
		logger:       logger.Named("price-cache"),
		db:           db,
		ttl:          time.Duration(cfg.PriceTTLSeconds) * time.Second,
		historyLimit: cfg.HistoryLimit,
		entries:      make(map[string]*entry),
	}
}

// GetPrice returns the cached point if it is younger than the TTL, otherwise
// refreshes it from the provider. Concurrent callers for the same stale symbol
// share a single provider fetch. When the provider fails but a point was ever
// cached, that point is returned with its Stale flag set instead of an error;
// with nothing cached the call fails with ErrDataUnavailable.
func (c *Cache) GetPrice(ctx context.Context, symbol string) (PricePoint, error) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	if ok && time.Since(e.fetchedAt) < c.ttl {
		point := e.point
		c.mu.RUnlock()
		return point, nil
	}
	c.mu.RUnlock()

	return c.refresh(ctx, symbol, false)
}

// Refresh forces a provider fetch regardless of TTL. Used by the scheduler's
// price sweep.
func (c *Cache) Refresh(ctx context.Context, symbol string) (PricePoint, error) {
	return c.refresh(ctx, symbol, true)
}

func (c *Cache) refresh(ctx context.Context, symbol string, force bool) (PricePoint, error) {
	v, err, _ := c.group.Do(symbol, func() (interface{}, error) {
		// A concurrent flight may have refreshed the entry while this caller
		// queued behind it.
		if !force {
			c.mu.RLock()
			e, ok := c.entries[symbol]
			if ok && time.Since(e.fetchedAt) < c.ttl {
				point := e.point
				c.mu.RUnlock()
				return point, nil
			}
			c.mu.RUnlock()
		}

		point, err := c.provider.FetchQuote(ctx, symbol)
		if err != nil {
			return c.fallback(symbol, err)
		}

		c.store(symbol, point)
		return point, nil
	})
	if err != nil {
		return PricePoint{}, err
	}
	return v.(PricePoint), nil
}

// fallback serves the last known point, marked stale, when the provider fails.
func (c *Cache) fallback(symbol string, cause error) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok {
		return nil, fmt.Errorf("%w for %s: %v", models.ErrDataUnavailable, symbol, cause)
	}

	e.point.Stale = true
	c.logger.Warn("Serving stale price, provider fetch failed",
		zap.String("symbol", symbol),
		zap.Time("fetched_at", e.fetchedAt),
		zap.Error(cause),
	)
	return e.point, nil
}

// store replaces the cached point and appends it to the bounded history.
// History timestamps stay strictly monotonic; a fetch that does not advance
// the clock replaces the latest point instead of appending.
func (c *Cache) store(symbol string, point PricePoint) {
	c.mu.Lock()
	e, ok := c.entries[symbol]
	if !ok {
		e = &entry{}
		c.entries[symbol] = e
	}
	e.point = point
	e.fetchedAt = time.Now()

	appended := false
	n := len(e.history)
	if n == 0 || point.Timestamp.After(e.history[n-1].Timestamp) {
		e.history = append(e.history, point)
		appended = true
		if c.historyLimit > 0 && len(e.history) > c.historyLimit {
			e.history = e.history[len(e.history)-c.historyLimit:]
		}
	}
	c.mu.Unlock()

	if appended {
		c.recordBar(point)
	}
}

// History returns a copy of the symbol's price history, oldest first.
func (c *Cache) History(symbol string) []PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok {
		return nil
	}
	history := make([]PricePoint, len(e.history))
	copy(history, e.history)
	return history
}

// Warm backfills a symbol's history from the provider so indicators have a
// full window before the first live quote. The backfilled point does not
// count as fresh; the next GetPrice still fetches a live quote.
func (c *Cache) Warm(ctx context.Context, symbol, period, interval string) error {
	points, err := c.provider.FetchHistory(ctx, symbol, period, interval)
	if err != nil {
		return fmt.Errorf("failed to warm history for %s: %w", symbol, err)
	}
	if len(points) == 0 {
		return nil
	}
	if c.historyLimit > 0 && len(points) > c.historyLimit {
		points = points[len(points)-c.historyLimit:]
	}

	c.mu.Lock()
	e, ok := c.entries[symbol]
	if !ok {
		e = &entry{}
		c.entries[symbol] = e
	}
	if len(e.history) == 0 {
		e.history = points
		e.point = points[len(points)-1]
		// fetchedAt stays zero so the next read triggers a live fetch
	}
	c.mu.Unlock()

	c.logger.Info("Warmed price history", zap.String("symbol", symbol), zap.Int("points", len(points)))
	return nil
}

func (c *Cache) recordBar(point PricePoint) {
	if c.db == nil {
		return
	}
	bar := models.PriceBar{
		Symbol:    point.Symbol,
		Timestamp: point.Timestamp,
		Open:      point.Open,
		High:      point.High,
		Low:       point.Low,
		Close:     point.Price,
		Volume:    point.Volume,
	}
	if err := c.db.Create(&bar).Error; err != nil {
		c.logger.Error("Failed to persist price bar", zap.String("symbol", point.Symbol), zap.Error(err))
	}
}
