package indicator

import (
	"fmt"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Params configures the indicator bundle computation.
type Params struct {
	RSILongPeriod  int
	RSIShortPeriod int
	// RSIHistoryLen bounds how many trailing short-RSI values are carried
	// for dip-lookback checks.
	RSIHistoryLen int
	BBPeriod      int
	BBStdDev      float64
	VolumeWindow  int
	// MinBars is the minimum closed-bar count for a valid bundle.
	MinBars int
}

// DefaultParams returns the standard indicator configuration.
func DefaultParams() Params {
	return Params{
		RSILongPeriod:  14,
		RSIShortPeriod: 7,
		RSIHistoryLen:  10,
		BBPeriod:       20,
		BBStdDev:       2.0,
		VolumeWindow:   20,
		MinBars:        60,
	}
}

// Engine turns ordered candle slices into typed indicator bundles.
type Engine struct {
	params Params
}

// NewEngine builds an Engine with the given params.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Compute builds the indicator bundle for the given candles (oldest→newest,
// closed bars only). Returns ErrInsufficientData when fewer than MinBars bars
// are available; individual indicators whose own window is not covered are
// NaN in the returned set.
func (e *Engine) Compute(symbol string, interval domain.Interval, candles []domain.Candle) (domain.IndicatorSet, error) {
	set := domain.IndicatorSet{
		Symbol:   symbol,
		Interval: interval,
		BarCount: len(candles),
	}
	if len(candles) < e.params.MinBars {
		return set, fmt.Errorf("indicator: %s: %d bars, need %d: %w",
			symbol, len(candles), e.params.MinBars, domain.ErrInsufficientData)
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	last := candles[len(candles)-1]

	set.Valid = true
	set.Timestamp = last.Timestamp
	set.Close = last.Close

	set.RSI14 = RSI(closes, e.params.RSILongPeriod)
	shortSeries := RSISeries(closes, e.params.RSIShortPeriod)
	set.RSI7 = shortSeries[len(shortSeries)-1]
	set.RSI7History = tail(shortSeries, e.params.RSIHistoryLen)

	set.MA20 = SMA(closes, 20)
	set.MA50 = SMA(closes, 50)
	set.MA200 = SMA(closes, 200)

	set.BBUpper, set.BBMiddle, set.BBLower = Bollinger(closes, e.params.BBPeriod, e.params.BBStdDev)

	histLen := e.params.RSIHistoryLen
	if histLen > len(candles) {
		histLen = len(candles)
	}
	set.LowHistory = make([]float64, histLen)
	set.BBLowerHistory = make([]float64, histLen)
	for i := 0; i < histLen; i++ {
		end := len(candles) - histLen + i + 1
		set.LowHistory[i] = candles[end-1].Low
		_, _, set.BBLowerHistory[i] = Bollinger(closes[:end], e.params.BBPeriod, e.params.BBStdDev)
	}

	set.VolumeRatio = VolumeRatio(volumes, e.params.VolumeWindow)
	return set, nil
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return append([]float64(nil), values...)
	}
	return append([]float64(nil), values[len(values)-n:]...)
}
