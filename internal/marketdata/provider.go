package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/models"
)

// HTTPProvider is a quote provider backed by a JSON quote API.
// It implements the Provider interface.
type HTTPProvider struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	timeout time.Duration
}

// ensure HTTPProvider implements the interface
var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a rate-limited quote API client.
func NewHTTPProvider(cfg *config.Provider, logger *zap.Logger) *HTTPProvider {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &HTTPProvider{
		client:  client,
		logger:  logger.Named("quote-provider"),
		limiter: limiter,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// quoteResponse is the wire format of GET /v1/quote.
type quoteResponse struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	Timestamp     time.Time `json:"timestamp"`
}

// historyResponse is the wire format of GET /v1/history.
type historyResponse struct {
	Symbol string `json:"symbol"`
	Bars   []struct {
		Timestamp time.Time `json:"timestamp"`
		Open      float64   `json:"open"`
		High      float64   `json:"high"`
		Low       float64   `json:"low"`
		Close     float64   `json:"close"`
		Volume    int64     `json:"volume"`
	} `json:"bars"`
}

// FetchQuote fetches the current quote for a symbol.
func (p *HTTPProvider) FetchQuote(ctx context.Context, symbol string) (PricePoint, error) {
	var quote quoteResponse

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := p.client.R().
		SetContext(reqCtx).
		SetQueryParam("symbol", symbol).
		SetResult(&quote)

	resp, err := p.doRequest(reqCtx, "GET", "/v1/quote", req)
	if err != nil {
		return PricePoint{}, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	result := resp.Result().(*quoteResponse)
	return PricePoint{
		Symbol:        symbol,
		Price:         result.Price,
		Change:        result.Change,
		ChangePercent: result.ChangePercent,
		Volume:        result.Volume,
		High:          result.High,
		Low:           result.Low,
		Open:          result.Open,
		Timestamp:     result.Timestamp,
	}, nil
}

// FetchHistory fetches historical OHLCV bars for a symbol. Bars are returned
// oldest first, as PricePoints priced at the close.
func (p *HTTPProvider) FetchHistory(ctx context.Context, symbol, period, interval string) ([]PricePoint, error) {
	var history historyResponse

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := p.client.R().
		SetContext(reqCtx).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"period":   period,
			"interval": interval,
		}).
		SetResult(&history)

	resp, err := p.doRequest(reqCtx, "GET", "/v1/history", req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	result := resp.Result().(*historyResponse)
	points := make([]PricePoint, 0, len(result.Bars))
	for _, bar := range result.Bars {
		points = append(points, PricePoint{
			Symbol:    symbol,
			Price:     bar.Close,
			Volume:    bar.Volume,
			High:      bar.High,
			Low:       bar.Low,
			Open:      bar.Open,
			Timestamp: bar.Timestamp,
		})
	}
	return points, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (p *HTTPProvider) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, wrapTimeout(fmt.Errorf("rate limiter wait failed: %w", err))
		}

		p.logger.Debug("Executing request", zap.String("method", method), zap.String("url", p.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err != nil {
			if isTimeout(err) {
				return nil, wrapTimeout(err)
			}
			shouldRetry = true // Network or other client-side errors
		} else {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		p.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, wrapTimeout(ctx.Err())
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}

func wrapTimeout(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", models.ErrProviderTimeout, err)
	}
	return err
}
