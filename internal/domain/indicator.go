package domain

import "time"

// IndicatorSet bundles every indicator the strategy reads for one symbol,
// computed on the closed bars of a single interval. Fields that cannot be
// computed from the available history are NaN; Valid reports whether the
// minimum bar count was met.
type IndicatorSet struct {
	Symbol    string
	Interval  Interval
	BarCount  int
	Valid     bool
	Timestamp time.Time // bar open time of the last closed candle

	Close float64

	RSI14 float64
	RSI7  float64
	// RSI7History holds the most recent RSI7 values oldest-first, enough
	// to cover the configured dip lookback.
	RSI7History []float64

	MA20  float64
	MA50  float64
	MA200 float64

	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	// LowHistory and BBLowerHistory hold aligned tails (oldest-first,
	// current bar last) for touch-and-recover style lookback checks.
	LowHistory     []float64
	BBLowerHistory []float64

	// VolumeRatio is current bar volume over the mean of the preceding
	// window, excluding the current bar.
	VolumeRatio float64
}
