package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/coinpilot/internal/domain"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 4.0, SMA(values, 3), 1e-9)
	assert.InDelta(t, 3.0, SMA(values, 5), 1e-9)
	assert.True(t, math.IsNaN(SMA(values, 6)))
	assert.True(t, math.IsNaN(SMA(nil, 3)))
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.InDelta(t, 100.0, RSI(closes, 14), 1e-9)
}

func TestRSIAllLossesIsZero(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	assert.InDelta(t, 0.0, RSI(closes, 14), 1e-9)
}

func TestRSIInsufficientHistory(t *testing.T) {
	assert.True(t, math.IsNaN(RSI([]float64{1, 2, 3}, 14)))
}

func TestRSIWilderSmoothing(t *testing.T) {
	// Alternating moves keep RSI near 50; Wilder smoothing must not swing
	// to the extremes.
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 101
		}
	}
	rsi := RSI(closes, 14)
	assert.Greater(t, rsi, 30.0)
	assert.Less(t, rsi, 70.0)
}

func TestBollingerFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
	}
	upper, middle, lower := Bollinger(closes, 20, 2.0)
	assert.InDelta(t, 50.0, upper, 1e-9)
	assert.InDelta(t, 50.0, middle, 1e-9)
	assert.InDelta(t, 50.0, lower, 1e-9)
}

func TestBollingerBandsBracketMean(t *testing.T) {
	closes := []float64{
		10, 12, 11, 13, 12, 14, 13, 15, 14, 16,
		15, 17, 16, 18, 17, 19, 18, 20, 19, 21,
	}
	upper, middle, lower := Bollinger(closes, 20, 2.0)
	assert.Greater(t, upper, middle)
	assert.Less(t, lower, middle)
	assert.InDelta(t, 15.5, middle, 1e-9)
}

func TestVolumeRatioExcludesCurrentBar(t *testing.T) {
	// Baseline mean of the 4 preceding bars is 100; current bar is 300.
	volumes := []float64{100, 100, 100, 100, 300}
	assert.InDelta(t, 3.0, VolumeRatio(volumes, 4), 1e-9)
}

func TestVolumeRatioInsufficientHistory(t *testing.T) {
	assert.True(t, math.IsNaN(VolumeRatio([]float64{1, 2}, 4)))
}

func TestResampleHourly(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var candles []domain.Candle
	for i := 0; i < 120; i++ {
		candles = append(candles, domain.Candle{
			Symbol:    "BTC",
			Interval:  domain.Interval1m,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    10,
		})
	}

	hourly := ResampleHourly(candles)
	require.Len(t, hourly, 2)

	first := hourly[0]
	assert.Equal(t, base, first.Timestamp)
	assert.InDelta(t, 100.0, first.Open, 1e-9)     // first minute's open
	assert.InDelta(t, 101.0+59, first.High, 1e-9)  // max high in hour
	assert.InDelta(t, 99.0, first.Low, 1e-9)       // min low in hour
	assert.InDelta(t, 100.5+59, first.Close, 1e-9) // last minute's close
	assert.InDelta(t, 600.0, first.Volume, 1e-9)   // summed volume
	assert.Equal(t, domain.Interval1h, first.Interval)
}

func TestEngineComputeInsufficientData(t *testing.T) {
	eng := NewEngine(DefaultParams())
	candles := makeCandles(10, 100)

	set, err := eng.Compute("BTC", domain.Interval1m, candles)
	require.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.False(t, set.Valid)
	assert.Equal(t, 10, set.BarCount)
}

func TestEngineComputeBundle(t *testing.T) {
	eng := NewEngine(DefaultParams())
	candles := makeCandles(100, 100)

	set, err := eng.Compute("BTC", domain.Interval1m, candles)
	require.NoError(t, err)

	assert.True(t, set.Valid)
	assert.Equal(t, "BTC", set.Symbol)
	assert.Equal(t, candles[len(candles)-1].Close, set.Close)
	assert.False(t, math.IsNaN(set.RSI14))
	assert.False(t, math.IsNaN(set.RSI7))
	assert.Len(t, set.RSI7History, 10)
	assert.False(t, math.IsNaN(set.MA20))
	assert.False(t, math.IsNaN(set.MA50))
	assert.True(t, math.IsNaN(set.MA200)) // only 100 bars
	assert.False(t, math.IsNaN(set.BBLower))
	assert.False(t, math.IsNaN(set.VolumeRatio))
	require.Len(t, set.LowHistory, 10)
	require.Len(t, set.BBLowerHistory, 10)
	assert.Equal(t, candles[len(candles)-1].Low, set.LowHistory[9])
	assert.InDelta(t, set.BBLower, set.BBLowerHistory[9], 1e-9)
}

func makeCandles(n int, start float64) []domain.Candle {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			price += 0.5
		} else {
			price -= 0.2
		}
		out[i] = domain.Candle{
			Symbol:    "BTC",
			Interval:  domain.Interval1m,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      price - 0.1,
			High:      price + 0.3,
			Low:       price - 0.3,
			Close:     price,
			Volume:    50 + float64(i%7),
		}
	}
	return out
}
