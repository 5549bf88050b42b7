package domain

import "time"

// Interval identifies a candle timeframe.
type Interval string

const (
	Interval1m Interval = "1m"
	Interval5m Interval = "5m"
	Interval1h Interval = "1h"
	Interval1d Interval = "1d"
)

// Candle is a single OHLCV bar. Timestamp marks the bar open time (UTC).
type Candle struct {
	Symbol    string
	Interval  Interval
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Ticker is a live price observation from the exchange feed.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume24h float64
	Timestamp time.Time
}
