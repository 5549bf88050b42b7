// Package strategy holds the regime-adaptive entry and exit evaluators and
// the trailing-stop state machine.
package strategy

import (
	"fmt"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// MACondition selects how price must relate to the trend moving average.
type MACondition string

const (
	// MACrossover requires close strictly above the MA.
	MACrossover MACondition = "crossover"
	// MAProximity requires close within the tolerance band just below the
	// MA (ma×tolerance ≤ close ≤ ma).
	MAProximity MACondition = "proximity"
	// MAProximityOrAbove accepts either of the above (close ≥ ma×tolerance).
	MAProximityOrAbove MACondition = "proximity_or_above"
)

// EntryParams is the entry-condition set for one regime.
type EntryParams struct {
	RSI14Max float64
	// RSI7Trigger / RSI7Recover define the dip-and-recover pattern: the
	// short RSI must have dropped below Trigger within DipLookback bars
	// and now sit at or above Recover, having bounced at least MinBounce
	// points off the dip low.
	RSI7Trigger float64
	RSI7Recover float64
	DipLookback int
	MinBounce   float64

	MACondition     MACondition
	MAPeriod        int
	MAProximity     float64 // tolerance fraction, e.g. 0.97
	BBFilter        bool    // reject entries below the lower band
	VolumeMin       float64 // 0 disables
	VolumeSurge     float64 // 0 disables; reject ratio above this
	BBTouch         bool    // SIDEWAYS only: lower-band touch-and-recover
	BBTouchLookback int
}

// ExitParams is the exit-condition set for one regime.
type ExitParams struct {
	StopLossPct        float64
	TakeProfitPct      float64
	TrailingStopPct    float64
	TrailingActivation float64
	RSIOverbought      float64
	RSIExitMinProfit   float64
	TimeLimit          time.Duration
}

// RegimeParams bundles entry/exit parameters and sizing for one regime.
type RegimeParams struct {
	Entry             EntryParams
	Exit              ExitParams
	PositionSizeRatio float64 // scales the per-order amount for this regime
}

// Matrix maps each tradeable regime to its parameters. UNKNOWN has no entry;
// it suppresses trading entirely.
type Matrix map[domain.Regime]RegimeParams

// DefaultMatrix returns the standard three-regime parameter set.
func DefaultMatrix() Matrix {
	return Matrix{
		domain.RegimeBull: {
			Entry: EntryParams{
				RSI14Max:    50,
				RSI7Trigger: 35, RSI7Recover: 40,
				DipLookback: 3, MinBounce: 2,
				MACondition: MACrossover, MAPeriod: 20,
				BBFilter:  true,
				VolumeMin: 0.8, VolumeSurge: 3.0,
			},
			Exit: ExitParams{
				StopLossPct: 0.03, TakeProfitPct: 0.08,
				TrailingStopPct: 0.025, TrailingActivation: 0.04,
				RSIOverbought: 80, RSIExitMinProfit: 0.02,
				TimeLimit: 72 * time.Hour,
			},
			PositionSizeRatio: 1.0,
		},
		domain.RegimeSideways: {
			Entry: EntryParams{
				RSI14Max:    40,
				RSI7Trigger: 30, RSI7Recover: 35,
				DipLookback: 3, MinBounce: 3,
				MACondition: MAProximity, MAPeriod: 20, MAProximity: 0.97,
				BBFilter:  true,
				VolumeMin: 1.0, VolumeSurge: 3.0,
				BBTouch: true, BBTouchLookback: 3,
			},
			Exit: ExitParams{
				StopLossPct: 0.025, TakeProfitPct: 0.05,
				TrailingStopPct: 0.02, TrailingActivation: 0.03,
				RSIOverbought: 70, RSIExitMinProfit: 0.01,
				TimeLimit: 48 * time.Hour,
			},
			PositionSizeRatio: 0.7,
		},
		domain.RegimeBear: {
			Entry: EntryParams{
				RSI14Max:    30,
				RSI7Trigger: 20, RSI7Recover: 28,
				DipLookback: 3, MinBounce: 4,
				MACondition: MAProximityOrAbove, MAPeriod: 20, MAProximity: 0.97,
				BBFilter:  true,
				VolumeMin: 1.2, VolumeSurge: 2.5,
			},
			Exit: ExitParams{
				StopLossPct: 0.02, TakeProfitPct: 0.03,
				TrailingStopPct: 0.015, TrailingActivation: 0.02,
				RSIOverbought: 65, RSIExitMinProfit: 0.005,
				TimeLimit: 24 * time.Hour,
			},
			PositionSizeRatio: 0.5,
		},
	}
}

// Validate checks the matrix for internally inconsistent parameters.
func (m Matrix) Validate() error {
	for regime, p := range m {
		if p.Entry.RSI7Recover <= p.Entry.RSI7Trigger {
			return fmt.Errorf("strategy: %s: rsi7 recover %.1f must exceed trigger %.1f",
				regime, p.Entry.RSI7Recover, p.Entry.RSI7Trigger)
		}
		if p.Entry.DipLookback < 1 {
			return fmt.Errorf("strategy: %s: dip lookback must be >= 1", regime)
		}
		if p.Exit.StopLossPct <= 0 || p.Exit.TakeProfitPct <= 0 {
			return fmt.Errorf("strategy: %s: stop-loss and take-profit must be positive", regime)
		}
		if p.Exit.TrailingStopPct <= 0 || p.Exit.TrailingActivation <= 0 {
			return fmt.Errorf("strategy: %s: trailing parameters must be positive", regime)
		}
		if p.PositionSizeRatio < 0 || p.PositionSizeRatio > 1 {
			return fmt.Errorf("strategy: %s: position size ratio out of [0,1]", regime)
		}
	}
	return nil
}

// maFor returns the configured trend MA from the indicator set.
func maFor(set domain.IndicatorSet, period int) float64 {
	switch period {
	case 50:
		return set.MA50
	case 200:
		return set.MA200
	default:
		return set.MA20
	}
}
