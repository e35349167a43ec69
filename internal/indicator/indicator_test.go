package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paper-trader-go/internal/config"
	"paper-trader-go/internal/marketdata"
	"paper-trader-go/internal/models"
)

func testIndicatorConfig() *config.Indicators {
	return &config.Indicators{
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
	}
}

// makeHistory builds an oldest-first window from parallel close/volume slices.
func makeHistory(closes []float64, volumes []int64) []marketdata.PricePoint {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]marketdata.PricePoint, len(closes))
	for i, c := range closes {
		var v int64 = 1000
		if volumes != nil {
			v = volumes[i]
		}
		history[i] = marketdata.PricePoint{
			Symbol:    "AAPL",
			Price:     c,
			Volume:    v,
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return history
}

func repeat(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestCompute_InsufficientHistory(t *testing.T) {
	cfg := testIndicatorConfig()

	// 14 points is one short of rsi_period+1
	_, err := Compute(cfg, "AAPL", makeHistory(repeat(100, 14), nil))

	assert.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestCompute_FlatSeries(t *testing.T) {
	cfg := testIndicatorConfig()

	snap, err := Compute(cfg, "AAPL", makeHistory(repeat(100, 60), nil))
	assert.NoError(t, err)

	// A series with no movement carries no momentum in either direction.
	assert.Equal(t, 50.0, snap.RSI)
	assert.False(t, snap.Overbought)
	assert.False(t, snap.Oversold)

	assert.InDelta(t, 0.0, snap.MACD, 1e-9)
	assert.InDelta(t, 0.0, snap.MACDHistogram, 1e-9)

	// Zero volatility collapses the bands onto the price.
	assert.InDelta(t, 100.0, snap.BollingerUpper, 1e-9)
	assert.InDelta(t, 100.0, snap.BollingerMiddle, 1e-9)
	assert.InDelta(t, 100.0, snap.BollingerLower, 1e-9)

	assert.Equal(t, 100.0, snap.SMA[20])
	assert.Equal(t, 100.0, snap.SMA[50])

	assert.False(t, math.IsNaN(snap.EMAFast))
	assert.False(t, math.IsNaN(snap.EMASlow))
}

func TestCompute_MonotonicRise(t *testing.T) {
	cfg := testIndicatorConfig()

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	snap, err := Compute(cfg, "AAPL", makeHistory(closes, nil))
	assert.NoError(t, err)

	// Only gains: RSI saturates and the fast EMA leads the slow one.
	assert.Equal(t, 100.0, snap.RSI)
	assert.True(t, snap.Overbought)
	assert.Greater(t, snap.MACD, 0.0)
	assert.Greater(t, snap.EMAFast, snap.EMASlow)
}

func TestCompute_MonotonicFall(t *testing.T) {
	cfg := testIndicatorConfig()

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}

	snap, err := Compute(cfg, "AAPL", makeHistory(closes, nil))
	assert.NoError(t, err)

	assert.Equal(t, 0.0, snap.RSI)
	assert.True(t, snap.Oversold)
	assert.Less(t, snap.MACD, 0.0)
}

func TestCompute_VolumeSpike(t *testing.T) {
	cfg := testIndicatorConfig()

	closes := repeat(100, 60)
	volumes := make([]int64, 60)
	for i := range volumes {
		volumes[i] = 1000
	}

	t.Run("NoSpike", func(t *testing.T) {
		snap, err := Compute(cfg, "AAPL", makeHistory(closes, volumes))
		assert.NoError(t, err)
		assert.False(t, snap.VolumeSpike)
		assert.InDelta(t, 1000.0, snap.VolumeAverage, 1e-9)
	})

	t.Run("Spike", func(t *testing.T) {
		spiked := make([]int64, len(volumes))
		copy(spiked, volumes)
		spiked[len(spiked)-1] = 5000

		snap, err := Compute(cfg, "AAPL", makeHistory(closes, spiked))
		assert.NoError(t, err)
		assert.True(t, snap.VolumeSpike)
	})
}

func TestCompute_ShortWindowSkipsLongSMA(t *testing.T) {
	cfg := testIndicatorConfig()

	// 30 points: enough for RSI and the 20-period SMA, not the 50.
	snap, err := Compute(cfg, "AAPL", makeHistory(repeat(100, 30), nil))
	assert.NoError(t, err)

	_, has20 := snap.SMA[20]
	_, has50 := snap.SMA[50]
	assert.True(t, has20)
	assert.False(t, has50)
}

func TestCompute_SnapshotMetadata(t *testing.T) {
	cfg := testIndicatorConfig()
	history := makeHistory(repeat(100, 30), nil)

	snap, err := Compute(cfg, "AAPL", history)
	assert.NoError(t, err)

	assert.Equal(t, "AAPL", snap.Symbol)
	assert.Equal(t, history[len(history)-1].Timestamp, snap.Timestamp)
}
