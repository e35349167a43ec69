// Package server exposes the HTTP and websocket boundary: price and indicator
// lookups, on-demand signals, paper-trade submission, portfolio views and the
// event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/portfolio"
	"paper-trader-go/internal/signal"
	"paper-trader-go/internal/stream"
)

// Server is the HTTP boundary over the trading core.
type Server struct {
	logger    *zap.Logger
	cfg       *config.Config
	cache     *marketdata.Cache
	evaluator *signal.Evaluator
	toggle    *signal.Toggle
	ledger    *portfolio.Ledger
	hub       *stream.Hub
	db        *gorm.DB
	http      *http.Server
}

// New wires the router and handlers.
func New(
	cfg *config.Config,
	cache *marketdata.Cache,
	evaluator *signal.Evaluator,
	toggle *signal.Toggle,
	ledger *portfolio.Ledger,
	hub *stream.Hub,
	db *gorm.DB,
	logger *zap.Logger,
) *Server {
	s := &Server{
		logger:    logger.Named("server"),
		cfg:       cfg,
		cache:     cache,
		evaluator: evaluator,
		toggle:    toggle,
		ledger:    ledger,
		hub:       hub,
		db:        db,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthcheck", s.handleHealthcheck)
	r.Get("/ws", stream.ServeWS(hub, logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/watchlist", s.handleWatchlist)
		r.Get("/price/{symbol}", s.handlePrice)
		r.Get("/history/{symbol}", s.handleHistory)
		r.Get("/indicators/{symbol}", s.handleIndicators)
		r.Get("/signal/{symbol}", s.handleSignal)
		r.Get("/signals", s.handleRecentSignals)

		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/positions", s.handlePositions)
		r.Post("/positions/{symbol}/close", s.handleClosePosition)
		r.Get("/trades", s.handleTrades)
		r.Post("/trades", s.handleExecuteTrade)

		r.Get("/autotrading", s.handleAutoTradingStatus)
		r.Post("/autotrading", s.handleAutoTradingToggle)
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
