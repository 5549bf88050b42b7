package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coinpilot/coinpilot/internal/domain"
)

func hourlyWithSpread(n int, last float64) []domain.Candle {
	// Builds n hourly bars where the last 50 closes sit at `last` and the
	// earlier ones at 100, steering the fast/slow MA spread.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		close := 100.0
		if i >= n-50 {
			close = last
		}
		out[i] = domain.Candle{
			Symbol:    "BTC",
			Interval:  domain.Interval1h,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      close, High: close, Low: close, Close: close,
			Volume: 1,
		}
	}
	return out
}

func TestClassifyThresholds(t *testing.T) {
	c := NewClassifier(DefaultParams())

	tests := []struct {
		name string
		last float64
		want domain.Regime
	}{
		// fast = MA50 of last 50 closes, slow = MA200 mixes 150×100 + 50×last.
		{"strong uptrend is BULL", 120, domain.RegimeBull},
		{"strong downtrend is BEAR", 80, domain.RegimeBear},
		{"flat is SIDEWAYS", 100, domain.RegimeSideways},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := c.Classify("BTC", hourlyWithSpread(200, tt.last))
			assert.Equal(t, tt.want, snap.Regime)
		})
	}
}

func TestClassifyBoundaryIsSideways(t *testing.T) {
	// Spread of exactly +2.0% / -2.0% stays SIDEWAYS; the thresholds are
	// strict inequalities.
	c := NewClassifier(Params{FastPeriod: 1, SlowPeriod: 2, BullThresholdPct: 2.0, BearThresholdPct: -2.0})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(a, b float64) []domain.Candle {
		return []domain.Candle{
			{Symbol: "BTC", Timestamp: base, Close: a},
			{Symbol: "BTC", Timestamp: base.Add(time.Hour), Close: b},
		}
	}

	// fast = b, slow = (a+b)/2; choose a,b so spread is exactly ±2%.
	// b=102, a=98: slow=100, spread=+2.0 → SIDEWAYS
	assert.Equal(t, domain.RegimeSideways, c.Classify("BTC", mk(98, 102)).Regime)
	// b=98, a=102: slow=100, spread=-2.0 → SIDEWAYS
	assert.Equal(t, domain.RegimeSideways, c.Classify("BTC", mk(102, 98)).Regime)
	// just past the band
	assert.Equal(t, domain.RegimeBull, c.Classify("BTC", mk(97, 103)).Regime)
	assert.Equal(t, domain.RegimeBear, c.Classify("BTC", mk(103, 97)).Regime)
}

func TestClassifyInsufficientHistoryIsUnknown(t *testing.T) {
	c := NewClassifier(DefaultParams())

	snap := c.Classify("BTC", hourlyWithSpread(150, 120))
	assert.Equal(t, domain.RegimeUnknown, snap.Regime)

	snap = c.Classify("BTC", nil)
	assert.Equal(t, domain.RegimeUnknown, snap.Regime)
}

func TestClassifySpreadPct(t *testing.T) {
	c := NewClassifier(Params{FastPeriod: 1, SlowPeriod: 2, BullThresholdPct: 2.0, BearThresholdPct: -2.0})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Symbol: "BTC", Timestamp: base, Close: 90},
		{Symbol: "BTC", Timestamp: base.Add(time.Hour), Close: 110},
	}
	snap := c.Classify("BTC", candles)
	// fast=110, slow=100 → +10%
	assert.InDelta(t, 10.0, snap.SpreadPct, 1e-9)
	assert.Equal(t, domain.RegimeBull, snap.Regime)
}
