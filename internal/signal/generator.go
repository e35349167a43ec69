// Package signal turns indicator snapshots into buy/sell/hold recommendations
// with a confidence score.
package signal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/indicator"
)

// Decisions.
const (
	DecisionBuy  = "buy"
	DecisionSell = "sell"
	DecisionHold = "hold"
)

// Signal is a single trading recommendation. Immutable once emitted;
// superseded by the next cycle's signal for the same symbol.
type Signal struct {
	Symbol            string    `json:"symbol"`
	Decision          string    `json:"decision"`
	Confidence        float64   `json:"confidence"`
	Reasoning         string    `json:"reasoning"`
	SuggestedQuantity float64   `json:"suggested_quantity"`
	RiskLevel         string    `json:"risk_level"`
	AutoExecute       bool      `json:"auto_execute"`
	Timestamp         time.Time `json:"timestamp"`
}

// Input carries everything one evaluation reads. Sentiment is nil when no
// sentiment provider is configured or the fetch failed; auto-trading state is
// read by the caller at evaluation time so tests can pin it.
type Input struct {
	Snapshot           indicator.Snapshot
	Price              float64
	Sentiment          *float64
	AutoTradingEnabled bool
}

// Generator scores indicator snapshots with configurable weighted votes.
type Generator struct {
	cfg config.Signals
}

// NewGenerator creates a signal generator with the given scoring weights.
func NewGenerator(cfg config.Signals) *Generator {
	return &Generator{cfg: cfg}
}

// Generate evaluates one symbol deterministically. Each indicator contributes
// a weighted vote; a volume spike amplifies whichever direction the other
// indicators favor. The net score maps to a decision via the configured
// thresholds and its magnitude, clamped to [0,1], becomes the confidence.
func (g *Generator) Generate(symbol string, in Input) Signal {
	snap := in.Snapshot
	w := g.cfg.Weights

	var score float64
	var reasons []string

	switch {
	case snap.Oversold:
		score += w.RSI
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", snap.RSI))
	case snap.Overbought:
		score -= w.RSI
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", snap.RSI))
	}

	if snap.Bullish {
		score += w.MACD
		reasons = append(reasons, "MACD bullish crossover")
	} else if snap.MACDHistogram < 0 {
		score -= w.MACD
		reasons = append(reasons, "MACD bearish")
	}

	switch trend(snap, in.Price) {
	case 1:
		score += w.Trend
		reasons = append(reasons, "price above rising moving averages")
	case -1:
		score -= w.Trend
		reasons = append(reasons, "price below falling moving averages")
	}

	if snap.BollingerLower > 0 && in.Price < snap.BollingerLower {
		score += w.Bollinger
		reasons = append(reasons, "price below lower Bollinger band")
	} else if snap.BollingerUpper > 0 && in.Price > snap.BollingerUpper {
		score -= w.Bollinger
		reasons = append(reasons, "price above upper Bollinger band")
	}

	if in.Sentiment != nil {
		score += *in.Sentiment * w.Sentiment
		if *in.Sentiment > 0.1 {
			reasons = append(reasons, "positive news sentiment")
		} else if *in.Sentiment < -0.1 {
			reasons = append(reasons, "negative news sentiment")
		}
	}

	if snap.VolumeSpike {
		score *= 1 + g.cfg.VolumeBoost
		reasons = append(reasons, "volume spike")
	}

	confidence := math.Min(math.Abs(score), 1.0)

	decision := DecisionHold
	if score >= g.cfg.BuyThreshold {
		decision = DecisionBuy
	} else if score <= g.cfg.SellThreshold {
		decision = DecisionSell
	}

	reasoning := strings.Join(reasons, "; ")
	if reasoning == "" {
		reasoning = "no significant indicator signals"
	}

	return Signal{
		Symbol:            symbol,
		Decision:          decision,
		Confidence:        round3(confidence),
		Reasoning:         reasoning,
		SuggestedQuantity: suggestedQuantity(decision, g.cfg.PositionSize, confidence, in.Price),
		RiskLevel:         riskLevel(decision, confidence),
		AutoExecute:       decision != DecisionHold && confidence >= g.cfg.AutoExecuteThreshold && in.AutoTradingEnabled,
		Timestamp:         time.Now(),
	}
}

// trend reports 1 when the price sits above an upward-aligned pair of moving
// averages, -1 for the mirror image, 0 otherwise. It uses the two shortest
// configured SMA periods present in the snapshot.
func trend(snap indicator.Snapshot, price float64) int {
	if len(snap.SMA) < 2 {
		return 0
	}
	periods := make([]int, 0, len(snap.SMA))
	for p := range snap.SMA {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	short, long := snap.SMA[periods[0]], snap.SMA[periods[1]]
	switch {
	case price > short && short > long:
		return 1
	case price < short && short < long:
		return -1
	}
	return 0
}

func suggestedQuantity(decision string, positionSize, confidence, price float64) float64 {
	if decision == DecisionHold || price <= 0 {
		return 0
	}
	return math.Floor(positionSize * confidence / price)
}

func riskLevel(decision string, confidence float64) string {
	if decision == DecisionHold {
		return "low"
	}
	if confidence > 0.8 {
		return "low"
	}
	return "medium"
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
