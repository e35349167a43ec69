package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"paper-trader-go/internal/config"
)

// HTTPSentimentProvider fetches an aggregate news-sentiment score per symbol.
// It implements the SentimentProvider interface.
type HTTPSentimentProvider struct {
	client  *resty.Client
	logger  *zap.Logger
	timeout time.Duration
}

var _ SentimentProvider = (*HTTPSentimentProvider)(nil)

// NewHTTPSentimentProvider creates a sentiment API client, or nil when no
// endpoint is configured.
func NewHTTPSentimentProvider(cfg *config.Provider, logger *zap.Logger) *HTTPSentimentProvider {
	if cfg.SentimentURL == "" {
		return nil
	}
	return &HTTPSentimentProvider{
		client:  resty.New().SetBaseURL(cfg.SentimentURL),
		logger:  logger.Named("sentiment-provider"),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// sentimentResponse is the wire format of GET /v1/sentiment.
type sentimentResponse struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"` // -1 (bearish) .. +1 (bullish)
}

// FetchSentiment returns the aggregate sentiment score for a symbol.
func (p *HTTPSentimentProvider) FetchSentiment(ctx context.Context, symbol string) (float64, error) {
	var result sentimentResponse

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.R().
		SetContext(reqCtx).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get("/v1/sentiment")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch sentiment for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("sentiment request failed with status %s", resp.Status())
	}

	return resp.Result().(*sentimentResponse).Score, nil
}
