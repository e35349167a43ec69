package signal

import (
	"context"

	"go.uber.org/zap"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/indicator"
	"paper-trader-go/internal/marketdata"
)

// PriceHistory supplies the current price and the indicator window for one
// symbol. Satisfied by the marketdata cache.
type PriceHistory interface {
	GetPrice(ctx context.Context, symbol string) (marketdata.PricePoint, error)
	History(symbol string) []marketdata.PricePoint
}

// Evaluator runs the full evaluation pipeline for one symbol: history window,
// indicator snapshot, optional sentiment, weighted scoring. The scheduler's
// signal cycle and the on-demand endpoint share it.
type Evaluator struct {
	logger     *zap.Logger
	indicators *config.Indicators
	prices     PriceHistory
	sentiment  marketdata.SentimentProvider // may be nil
	generator  *Generator
	toggle     *Toggle
}

// NewEvaluator wires an evaluation pipeline.
func NewEvaluator(
	indicators *config.Indicators,
	prices PriceHistory,
	sentiment marketdata.SentimentProvider,
	generator *Generator,
	toggle *Toggle,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		logger:     logger.Named("evaluator"),
		indicators: indicators,
		prices:     prices,
		sentiment:  sentiment,
		generator:  generator,
		toggle:     toggle,
	}
}

// Evaluate produces one signal for the symbol. It fails with
// ErrInsufficientHistory until the symbol's window is long enough and with
// the price source's error when no price can be served. A sentiment fetch
// failure is not fatal; the signal is scored on indicators alone.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string) (Signal, error) {
	snap, err := indicator.Compute(e.indicators, symbol, e.prices.History(symbol))
	if err != nil {
		return Signal{}, err
	}

	point, err := e.prices.GetPrice(ctx, symbol)
	if err != nil {
		return Signal{}, err
	}

	var sentiment *float64
	if e.sentiment != nil {
		if score, err := e.sentiment.FetchSentiment(ctx, symbol); err == nil {
			sentiment = &score
		} else {
			e.logger.Debug("Sentiment unavailable, scoring indicators only",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	return e.generator.Generate(symbol, Input{
		Snapshot:           snap,
		Price:              point.Price,
		Sentiment:          sentiment,
		AutoTradingEnabled: e.toggle.Enabled(),
	}), nil
}
