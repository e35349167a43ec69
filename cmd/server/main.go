package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/database"
	"paper-trader-go/internal/logger"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/portfolio"
	"paper-trader-go/internal/scheduler"
	"paper-trader-go/internal/server"
	sig "paper-trader-go/internal/signal"
	"paper-trader-go/internal/stream"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.Strings("watchlist", cfg.Watchlist))

	// Initialize database
	db, err := database.New(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Market data providers and price cache
	provider := marketdata.NewHTTPProvider(&cfg.Provider, log)
	var sentiment marketdata.SentimentProvider
	if sp := marketdata.NewHTTPSentimentProvider(&cfg.Provider, log); sp != nil {
		sentiment = sp
	}
	cache := marketdata.NewCache(&cfg.Market, provider, db, log)

	// Broadcast hub and the paper-trading ledger
	hub := stream.NewHub(cfg.Stream.QueueSize, log)
	ledger, err := portfolio.NewLedger(&cfg.Trading, db, cache, hub, log)
	if err != nil {
		log.Fatal("Failed to load portfolio", zap.Error(err))
	}

	// Signal pipeline
	toggle := sig.NewToggle(cfg.Signals.AutoTradingEnabled)
	generator := sig.NewGenerator(cfg.Signals)
	evaluator := sig.NewEvaluator(&cfg.Indicators, cache, sentiment, generator, toggle, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	jobs := scheduler.New(&cfg, cache, evaluator, toggle, ledger, hub, db, log)
	api := server.New(&cfg, cache, evaluator, toggle, ledger, hub, db, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return jobs.Run(gctx) })
	g.Go(func() error { return api.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
	log.Info("Server has been shut down.")
}
