package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paper-trader-go/internal/indicator"
	"paper-trader-go/internal/models"
	"paper-trader-go/internal/portfolio"
)

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.Count(),
	})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{"symbols": s.cfg.Watchlist})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	point, err := s.cache.GetPrice(r.Context(), symbol)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, point)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	history := s.cache.History(symbol)
	if len(history) == 0 {
		s.respondError(w, models.ErrDataUnavailable)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"points": history,
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	snap, err := indicator.Compute(&s.cfg.Indicators, symbol, s.cache.History(symbol))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, snap)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	sig, err := s.evaluator.Evaluate(r.Context(), symbol)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, sig)
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	var records []models.SignalRecord
	if err := s.db.Order("timestamp desc").Limit(limit).Find(&records).Error; err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"signals": records})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.GetSummary(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, summary)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{
		"positions": s.ledger.Positions(r.Context()),
	})
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	trade, err := s.ledger.ClosePosition(r.Context(), symbol)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, trade)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ledger.TradeHistory(queryInt(r, "limit", 100))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req portfolio.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := s.ledger.ExecuteTrade(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, trade)
}

func (s *Server) handleAutoTradingStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{"enabled": s.toggle.Enabled()})
}

func (s *Server) handleAutoTradingToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.toggle.Set(req.Enabled)
	s.logger.Info("Auto-trading toggled", zap.Bool("enabled", req.Enabled))
	s.respond(w, http.StatusOK, map[string]interface{}{"enabled": req.Enabled})
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) respondStatus(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, map[string]string{"error": message})
}

// respondError maps domain errors onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrDataUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientHistory),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientPosition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidQuantity), errors.Is(err, models.ErrUnknownAction):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrProviderTimeout):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.respondStatus(w, status, err.Error())
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
