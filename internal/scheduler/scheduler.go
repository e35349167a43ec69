// Package scheduler drives the periodic jobs: the price refresh sweep, the
// signal generation cycle and the heartbeat. Jobs share no state with each
// other; they communicate only through the price cache, the ledger and the
// broadcast hub.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/models"
	"paper-trader-go/internal/portfolio"
	"paper-trader-go/internal/signal"
	"paper-trader-go/internal/stream"
)

// Scheduler owns the cron runner and the three periodic jobs.
type Scheduler struct {
	logger    *zap.Logger
	cfg       *config.Config
	cron      *cron.Cron
	cache     *marketdata.Cache
	evaluator *signal.Evaluator
	toggle    *signal.Toggle
	ledger    *portfolio.Ledger
	hub       *stream.Hub
	db        *gorm.DB
}

// New creates a scheduler. A tick that fires while the previous run of the
// same job is still going is skipped, never queued.
func New(
	cfg *config.Config,
	cache *marketdata.Cache,
	evaluator *signal.Evaluator,
	toggle *signal.Toggle,
	ledger *portfolio.Ledger,
	hub *stream.Hub,
	db *gorm.DB,
	logger *zap.Logger,
) *Scheduler {
	log := logger.Named("scheduler")
	cronLog := cron.VerbosePrintfLogger(zap.NewStdLog(log))

	return &Scheduler{
		logger:    log,
		cfg:       cfg,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog))),
		cache:     cache,
		evaluator: evaluator,
		toggle:    toggle,
		ledger:    ledger,
		hub:       hub,
		db:        db,
	}
}

// Run registers the jobs, warms the price history for every watchlisted
// symbol, and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.warm(ctx)

	jobs := []struct {
		name     string
		interval int
		fn       func()
	}{
		{"price-sweep", s.cfg.Scheduler.PriceInterval, s.sweepPrices},
		{"signal-cycle", s.cfg.Scheduler.SignalInterval, s.generateSignals},
		{"heartbeat", s.cfg.Scheduler.HeartbeatInterval, s.heartbeat},
	}
	for _, job := range jobs {
		spec := fmt.Sprintf("@every %ds", job.interval)
		if _, err := s.cron.AddFunc(spec, job.fn); err != nil {
			return fmt.Errorf("could not register %s job: %w", job.name, err)
		}
		s.logger.Info("Registered job", zap.String("job", job.name), zap.String("schedule", spec))
	}

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("Stopping scheduler...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done() // wait for running jobs to finish
	return nil
}

// warm backfills indicator history so the first signal cycle has a full
// window to work with. Failures are non-fatal; the symbol retries as live
// quotes accumulate.
func (s *Scheduler) warm(ctx context.Context) {
	for _, symbol := range s.cfg.Watchlist {
		err := s.cache.Warm(ctx, symbol, s.cfg.Market.HistoryPeriod, s.cfg.Market.HistoryInterval)
		if err != nil {
			s.logger.Warn("History warm-up failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// sweepPrices refreshes every watchlisted symbol and broadcasts the fresh
// points. A failing symbol is logged and retried next cycle.
func (s *Scheduler) sweepPrices() {
	ctx := context.Background()
	for _, symbol := range s.cfg.Watchlist {
		point, err := s.cache.Refresh(ctx, symbol)
		if err != nil {
			s.logger.Warn("Price refresh failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		s.hub.Publish(stream.NewEvent(stream.EventPrice, symbol, point))
	}
}

// generateSignals evaluates every watchlisted symbol, persists and broadcasts
// the resulting signals, and submits the paper trade for signals flagged for
// auto-execution. A per-symbol failure never aborts the cycle.
func (s *Scheduler) generateSignals() {
	ctx := context.Background()
	for _, symbol := range s.cfg.Watchlist {
		sig, err := s.evaluator.Evaluate(ctx, symbol)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientHistory) {
				s.logger.Debug("Skipping symbol, insufficient history", zap.String("symbol", symbol))
			} else {
				s.logger.Warn("Signal evaluation failed", zap.String("symbol", symbol), zap.Error(err))
			}
			continue
		}

		record := models.SignalRecord{
			Symbol:     sig.Symbol,
			Decision:   sig.Decision,
			Confidence: sig.Confidence,
			Reasoning:  sig.Reasoning,
			Timestamp:  sig.Timestamp,
		}
		if err := s.db.Create(&record).Error; err != nil {
			s.logger.Error("Failed to persist signal", zap.String("symbol", symbol), zap.Error(err))
		}

		s.hub.Publish(stream.NewEvent(stream.EventSignal, symbol, sig))

		if sig.AutoExecute && sig.SuggestedQuantity > 0 {
			s.autoExecute(ctx, sig)
		}
	}
}

func (s *Scheduler) autoExecute(ctx context.Context, sig signal.Signal) {
	trade, err := s.ledger.ExecuteTrade(ctx, portfolio.TradeRequest{
		Symbol:    sig.Symbol,
		Action:    sig.Decision,
		Quantity:  sig.SuggestedQuantity,
		OrderType: models.OrderTypeMarket,
		Auto:      true,
	})
	if err != nil {
		s.logger.Warn("Auto-execution rejected",
			zap.String("symbol", sig.Symbol),
			zap.String("decision", sig.Decision),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Auto-executed trade from signal",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.Float64("confidence", sig.Confidence),
	)
}

// heartbeat broadcasts liveness plus a few cheap gauges.
func (s *Scheduler) heartbeat() {
	s.hub.Publish(stream.NewEvent(stream.EventHeartbeat, "", map[string]interface{}{
		"subscribers":  s.hub.Count(),
		"watchlist":    len(s.cfg.Watchlist),
		"auto_trading": s.toggle.Enabled(),
		"time":         time.Now().UTC(),
	}))
}
