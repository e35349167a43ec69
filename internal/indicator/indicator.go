// Package indicator derives technical indicators from a price history window.
// Every computation is a pure function of its input; the engine keeps no state
// between cycles.
package indicator

import (
	"fmt"
	"math"
	"time"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/models"
)

// Snapshot is the derived indicator state of one symbol at one instant.
// It is recomputed wholesale each cycle, never partially updated.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	RSI        float64 `json:"rsi"`
	Overbought bool    `json:"overbought"`
	Oversold   bool    `json:"oversold"`

	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	Bullish       bool    `json:"bullish"`

	SMA     map[int]float64 `json:"sma"`
	EMAFast float64         `json:"ema_fast"`
	EMASlow float64         `json:"ema_slow"`

	BollingerUpper  float64 `json:"bollinger_upper"`
	BollingerMiddle float64 `json:"bollinger_middle"`
	BollingerLower  float64 `json:"bollinger_lower"`

	VolumeAverage float64 `json:"volume_average"`
	VolumeSpike   bool    `json:"volume_spike"`
}

// Compute derives a full indicator snapshot from the given history window.
// The window must be ordered oldest first and hold at least rsi_period+1
// points; shorter windows yield ErrInsufficientHistory.
func Compute(cfg *config.Indicators, symbol string, history []marketdata.PricePoint) (Snapshot, error) {
	if len(history) < cfg.RSIPeriod+1 {
		return Snapshot{}, fmt.Errorf("%w: %s has %d points, need %d",
			models.ErrInsufficientHistory, symbol, len(history), cfg.RSIPeriod+1)
	}

	closes := make([]float64, len(history))
	volumes := make([]float64, len(history))
	for i, p := range history {
		closes[i] = p.Price
		volumes[i] = float64(p.Volume)
	}

	snap := Snapshot{
		Symbol:    symbol,
		Timestamp: history[len(history)-1].Timestamp,
		SMA:       make(map[int]float64, len(cfg.SMAPeriods)),
	}

	snap.RSI = rsi(closes, cfg.RSIPeriod)
	snap.Overbought = snap.RSI > cfg.RSIOverbought
	snap.Oversold = snap.RSI < cfg.RSIOversold

	snap.MACD, snap.MACDSignal, snap.MACDHistogram = macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	snap.Bullish = snap.MACD > snap.MACDSignal

	snap.EMAFast = ema(closes, cfg.MACDFast)
	snap.EMASlow = ema(closes, cfg.MACDSlow)
	for _, period := range cfg.SMAPeriods {
		if v, ok := sma(closes, period); ok {
			snap.SMA[period] = v
		}
	}

	snap.BollingerUpper, snap.BollingerMiddle, snap.BollingerLower =
		bollinger(closes, cfg.BollingerWindow, cfg.BollingerMultiplier)

	if avg, ok := sma(volumes, cfg.BollingerWindow); ok {
		snap.VolumeAverage = avg
		current := volumes[len(volumes)-1]
		snap.VolumeSpike = avg > 0 && current > avg*cfg.VolumeSpikeMultiplier
	}

	return snap, nil
}

// rsi computes the Wilder-smoothed Relative Strength Index. A window with no
// movement at all yields the neutral value 50.
func rsi(closes []float64, period int) float64 {
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0 // flat series, no momentum either way
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// sma computes the simple moving average of the trailing period.
func sma(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// ema computes the exponential moving average over the full series, seeded
// with the first value.
func ema(values []float64, span int) float64 {
	return emaSeries(values, span)[len(values)-1]
}

func emaSeries(values []float64, span int) []float64 {
	k := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// macd computes the MACD line, signal line and histogram for the last point.
func macd(closes []float64, fast, slow, signal int) (line, sig, hist float64) {
	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)

	macdSeries := make([]float64, len(closes))
	for i := range closes {
		macdSeries[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := emaSeries(macdSeries, signal)

	n := len(closes) - 1
	return macdSeries[n], signalSeries[n], macdSeries[n] - signalSeries[n]
}

// bollinger computes volatility bands at ±multiplier standard deviations
// around the window's simple moving average. Windows shorter than the
// configured size use what is available.
func bollinger(closes []float64, window int, multiplier float64) (upper, middle, lower float64) {
	if window > len(closes) {
		window = len(closes)
	}
	middle, _ = sma(closes, window)

	variance := 0.0
	for i := len(closes) - window; i < len(closes); i++ {
		d := closes[i] - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(window))

	return middle + std*multiplier, middle, middle - std*multiplier
}
