package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/models"
	"paper-trader-go/internal/portfolio"
	"paper-trader-go/internal/signal"
	"paper-trader-go/internal/stream"
)

// stubProvider serves fixed quotes and history for the symbols it knows.
type stubProvider struct {
	prices map[string]float64
	bars   int
}

func (p *stubProvider) FetchQuote(_ context.Context, symbol string) (marketdata.PricePoint, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return marketdata.PricePoint{}, fmt.Errorf("%w for %s", models.ErrDataUnavailable, symbol)
	}
	return marketdata.PricePoint{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

func (p *stubProvider) FetchHistory(_ context.Context, symbol, _, _ string) ([]marketdata.PricePoint, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w for %s", models.ErrDataUnavailable, symbol)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.PricePoint, p.bars)
	for i := range bars {
		bars[i] = marketdata.PricePoint{
			Symbol:    symbol,
			Price:     price,
			Volume:    1000,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return bars, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Market: config.Market{PriceTTLSeconds: 60, HistoryLimit: 500},
		Indicators: config.Indicators{
			RSIPeriod:             14,
			RSIOverbought:         70,
			RSIOversold:           30,
			MACDFast:              12,
			MACDSlow:              26,
			MACDSignal:            9,
			SMAPeriods:            []int{20, 50},
			BollingerWindow:       20,
			BollingerMultiplier:   2.0,
			VolumeSpikeMultiplier: 1.5,
		},
		Signals: config.Signals{
			Weights: config.Weights{
				RSI: 0.30, MACD: 0.20, Trend: 0.20, Bollinger: 0.15, Sentiment: 0.15,
			},
			VolumeBoost:          0.25,
			BuyThreshold:         0.35,
			SellThreshold:        -0.35,
			AutoExecuteThreshold: 0.75,
			PositionSize:         1000,
		},
		Trading:   config.Trading{StartingCash: 10000},
		Stream:    config.Stream{QueueSize: 16},
		Watchlist: []string{"AAPL", "MSFT"},
	}
}

// setupServer wires a full server over stubbed market data and a fresh
// in-memory database, warmed so AAPL has enough history for indicators.
func setupServer(t *testing.T) *httptest.Server {
	cfg := testConfig()
	log := zap.NewNop()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&models.Trade{}, &models.Position{}, &models.SignalRecord{}, &models.PortfolioState{},
	))

	provider := &stubProvider{prices: map[string]float64{"AAPL": 100, "MSFT": 50}, bars: 60}
	cache := marketdata.NewCache(&cfg.Market, provider, nil, log)
	assert.NoError(t, cache.Warm(context.Background(), "AAPL", "1y", "1d"))

	hub := stream.NewHub(cfg.Stream.QueueSize, log)
	ledger, err := portfolio.NewLedger(&cfg.Trading, db, cache, hub, log)
	assert.NoError(t, err)

	toggle := signal.NewToggle(false)
	generator := signal.NewGenerator(cfg.Signals)
	evaluator := signal.NewEvaluator(&cfg.Indicators, cache, nil, generator, toggle, log)

	s := New(cfg, cache, evaluator, toggle, ledger, hub, db, log)
	ts := httptest.NewServer(s.http.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) int {
	resp, err := http.Get(url)
	assert.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	payload, err := json.Marshal(body)
	assert.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	assert.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandleHealthcheck(t *testing.T) {
	ts := setupServer(t)

	var body map[string]interface{}
	status := getJSON(t, ts.URL+"/healthcheck", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestHandlePrice(t *testing.T) {
	ts := setupServer(t)

	t.Run("Known", func(t *testing.T) {
		var point marketdata.PricePoint
		status := getJSON(t, ts.URL+"/api/price/AAPL", &point)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "AAPL", point.Symbol)
		assert.Equal(t, 100.0, point.Price)
	})

	t.Run("Unknown", func(t *testing.T) {
		var body map[string]string
		status := getJSON(t, ts.URL+"/api/price/NOPE", &body)

		assert.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body["error"], "data unavailable")
	})
}

func TestHandleIndicators(t *testing.T) {
	ts := setupServer(t)

	t.Run("WarmedSymbol", func(t *testing.T) {
		var body map[string]interface{}
		status := getJSON(t, ts.URL+"/api/indicators/AAPL", &body)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "AAPL", body["symbol"])
		assert.Equal(t, 50.0, body["rsi"]) // flat stub history
	})

	t.Run("NoHistory", func(t *testing.T) {
		status := getJSON(t, ts.URL+"/api/indicators/MSFT", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})
}

func TestHandleSignal(t *testing.T) {
	ts := setupServer(t)

	var sig signal.Signal
	status := getJSON(t, ts.URL+"/api/signal/AAPL", &sig)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AAPL", sig.Symbol)
	assert.Equal(t, signal.DecisionHold, sig.Decision) // flat stub history
}

func TestHandleExecuteTrade(t *testing.T) {
	ts := setupServer(t)

	t.Run("Buy", func(t *testing.T) {
		var trade models.Trade
		status := postJSON(t, ts.URL+"/api/trades", portfolio.TradeRequest{
			Symbol: "AAPL", Action: "buy", Quantity: 10,
		}, &trade)

		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "executed", trade.Status)
		assert.Equal(t, 100.0, trade.Price)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		var body map[string]string
		status := postJSON(t, ts.URL+"/api/trades", portfolio.TradeRequest{
			Symbol: "AAPL", Action: "buy", Quantity: 1000,
		}, &body)

		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Contains(t, body["error"], "insufficient funds")
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		status := postJSON(t, ts.URL+"/api/trades", portfolio.TradeRequest{
			Symbol: "AAPL", Action: "buy", Quantity: 0,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		status := postJSON(t, ts.URL+"/api/trades", portfolio.TradeRequest{
			Symbol: "AAPL", Action: "short", Quantity: 1,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/trades", "application/json", bytes.NewReader([]byte("{")))
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandlePortfolioAndPositions(t *testing.T) {
	ts := setupServer(t)

	status := postJSON(t, ts.URL+"/api/trades", portfolio.TradeRequest{
		Symbol: "AAPL", Action: "buy", Quantity: 10,
	}, nil)
	assert.Equal(t, http.StatusCreated, status)

	t.Run("Portfolio", func(t *testing.T) {
		var summary portfolio.Summary
		status := getJSON(t, ts.URL+"/api/portfolio", &summary)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 9000.0, summary.Cash)
		assert.Equal(t, 1, summary.PositionsCount)
		assert.Equal(t, int64(1), summary.TotalTrades)
	})

	t.Run("Positions", func(t *testing.T) {
		var body struct {
			Positions []portfolio.PositionView `json:"positions"`
		}
		status := getJSON(t, ts.URL+"/api/positions", &body)

		assert.Equal(t, http.StatusOK, status)
		assert.Len(t, body.Positions, 1)
		assert.Equal(t, "AAPL", body.Positions[0].Symbol)
		assert.Equal(t, 10.0, body.Positions[0].Quantity)
	})

	t.Run("ClosePosition", func(t *testing.T) {
		var trade models.Trade
		status := postJSON(t, ts.URL+"/api/positions/AAPL/close", nil, &trade)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "sell", trade.Action)
		assert.Equal(t, 10.0, trade.Quantity)
	})

	t.Run("CloseWithoutPosition", func(t *testing.T) {
		status := postJSON(t, ts.URL+"/api/positions/MSFT/close", nil, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})
}

func TestHandleTrades(t *testing.T) {
	ts := setupServer(t)

	for i := 0; i < 3; i++ {
		status := postJSON(t, ts.URL+"/api/trades", portfolio.TradeRequest{
			Symbol: "AAPL", Action: "buy", Quantity: 1,
		}, nil)
		assert.Equal(t, http.StatusCreated, status)
	}

	var body struct {
		Trades []models.Trade `json:"trades"`
	}
	status := getJSON(t, ts.URL+"/api/trades?limit=2", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Trades, 2)
}

func TestHandleAutoTrading(t *testing.T) {
	ts := setupServer(t)

	var body map[string]bool
	status := getJSON(t, ts.URL+"/api/autotrading", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, body["enabled"])

	status = postJSON(t, ts.URL+"/api/autotrading", map[string]bool{"enabled": true}, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body["enabled"])

	status = getJSON(t, ts.URL+"/api/autotrading", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body["enabled"])
}

func TestHandleWatchlist(t *testing.T) {
	ts := setupServer(t)

	var body struct {
		Symbols []string `json:"symbols"`
	}
	status := getJSON(t, ts.URL+"/api/watchlist", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, body.Symbols)
}

func TestHandleHistory(t *testing.T) {
	ts := setupServer(t)

	t.Run("Warmed", func(t *testing.T) {
		var body struct {
			Symbol string                  `json:"symbol"`
			Points []marketdata.PricePoint `json:"points"`
		}
		status := getJSON(t, ts.URL+"/api/history/AAPL", &body)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "AAPL", body.Symbol)
		assert.Len(t, body.Points, 60)
	})

	t.Run("Empty", func(t *testing.T) {
		status := getJSON(t, ts.URL+"/api/history/MSFT", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
