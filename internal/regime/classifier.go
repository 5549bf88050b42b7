// Package regime classifies the prevailing market trend from the spread
// between fast and slow moving averages on hourly closes.
package regime

import (
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/indicator"
)

// Params configures the classifier thresholds.
type Params struct {
	FastPeriod int
	SlowPeriod int
	// BullThresholdPct and BearThresholdPct bound the SIDEWAYS band in
	// percent spread between fast and slow MA.
	BullThresholdPct float64
	BearThresholdPct float64
}

// DefaultParams returns the standard 50/200 hourly configuration.
func DefaultParams() Params {
	return Params{
		FastPeriod:       50,
		SlowPeriod:       200,
		BullThresholdPct: 2.0,
		BearThresholdPct: -2.0,
	}
}

// Classifier derives a regime from hourly candles. Stateless.
type Classifier struct {
	params Params
}

// NewClassifier builds a Classifier with the given params.
func NewClassifier(params Params) *Classifier {
	return &Classifier{params: params}
}

// Classify returns the regime for the given hourly candles (oldest→newest).
// Fewer than SlowPeriod bars yields UNKNOWN, which suppresses all entries.
func (c *Classifier) Classify(symbol string, hourly []domain.Candle) domain.RegimeSnapshot {
	snap := domain.RegimeSnapshot{
		Symbol:     symbol,
		Regime:     domain.RegimeUnknown,
		ComputedAt: time.Now().UTC(),
	}
	if len(hourly) < c.params.SlowPeriod {
		return snap
	}

	closes := make([]float64, len(hourly))
	for i, candle := range hourly {
		closes[i] = candle.Close
	}
	fast := indicator.SMA(closes, c.params.FastPeriod)
	slow := indicator.SMA(closes, c.params.SlowPeriod)
	if slow == 0 {
		return snap
	}

	snap.MAFast = fast
	snap.MASlow = slow
	snap.SpreadPct = (fast - slow) / slow * 100

	switch {
	case snap.SpreadPct > c.params.BullThresholdPct:
		snap.Regime = domain.RegimeBull
	case snap.SpreadPct < c.params.BearThresholdPct:
		snap.Regime = domain.RegimeBear
	default:
		snap.Regime = domain.RegimeSideways
	}
	return snap
}
