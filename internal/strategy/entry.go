package strategy

import (
	"fmt"
	"math"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Decision is an accept/reject with the single reason that decided it. The
// same Decision string feeds both the trade decision and the operator status
// readout, so the two can never disagree.
type Decision struct {
	OK     bool
	Reason string
}

func reject(format string, args ...any) Decision {
	return Decision{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// EntryEvaluator applies the regime-specific entry chain. Stateless per call.
type EntryEvaluator struct {
	matrix Matrix
}

// NewEntryEvaluator builds an EntryEvaluator over the given matrix.
func NewEntryEvaluator(matrix Matrix) *EntryEvaluator {
	return &EntryEvaluator{matrix: matrix}
}

// Evaluate runs the ordered entry conditions for the regime against the
// indicator set. The first failing condition short-circuits and names itself
// in the returned reason; all conditions passing yields OK.
func (e *EntryEvaluator) Evaluate(set domain.IndicatorSet, regime domain.Regime) Decision {
	if regime == domain.RegimeUnknown {
		return reject("regime UNKNOWN: entries suppressed")
	}
	params, ok := e.matrix[regime]
	if !ok {
		return reject("regime %s: no entry configuration", regime)
	}
	if !set.Valid {
		return reject("insufficient indicator history (%d bars)", set.BarCount)
	}
	entry := params.Entry

	// 1. Long-window momentum ceiling.
	if math.IsNaN(set.RSI14) {
		return reject("rsi14 unavailable")
	}
	if set.RSI14 > entry.RSI14Max {
		return reject("rsi14 %.1f above max %.1f", set.RSI14, entry.RSI14Max)
	}

	// 2. Short-window dip-and-recover.
	if d := e.checkDipRecover(set, entry); !d.OK {
		return d
	}

	// 3. Trend-relation condition.
	if d := e.checkMACondition(set, entry); !d.OK {
		return d
	}

	// 4. Falling-knife veto.
	if entry.BBFilter {
		if math.IsNaN(set.BBLower) {
			return reject("bollinger bands unavailable")
		}
		if set.Close < set.BBLower {
			return reject("price %.4f below lower band %.4f (falling knife)", set.Close, set.BBLower)
		}
	}

	// 5. Volume-ratio bounds and surge veto.
	if entry.VolumeMin > 0 || entry.VolumeSurge > 0 {
		if math.IsNaN(set.VolumeRatio) {
			return reject("volume ratio unavailable")
		}
		if entry.VolumeMin > 0 && set.VolumeRatio < entry.VolumeMin {
			return reject("volume ratio %.2f below min %.2f", set.VolumeRatio, entry.VolumeMin)
		}
		if entry.VolumeSurge > 0 && set.VolumeRatio > entry.VolumeSurge {
			return reject("volume ratio %.2f above surge cap %.2f", set.VolumeRatio, entry.VolumeSurge)
		}
	}

	// 6. Range-bound band touch-and-recover.
	if entry.BBTouch && regime == domain.RegimeSideways {
		if d := e.checkBBTouchRecover(set, entry); !d.OK {
			return d
		}
	}

	return Decision{OK: true, Reason: "entry conditions met"}
}

// checkDipRecover verifies the short RSI dropped below the trigger within the
// lookback window and has recovered past the recovery threshold with at least
// the minimum bounce off the dip low.
func (e *EntryEvaluator) checkDipRecover(set domain.IndicatorSet, entry EntryParams) Decision {
	if math.IsNaN(set.RSI7) {
		return reject("rsi7 unavailable")
	}
	hist := set.RSI7History
	if len(hist) < 2 {
		return reject("rsi7 history too short")
	}
	// Window excludes the current value, which must be the recovery point.
	window := hist[:len(hist)-1]
	if len(window) > entry.DipLookback {
		window = window[len(window)-entry.DipLookback:]
	}

	dipLow := math.Inf(1)
	for _, v := range window {
		if !math.IsNaN(v) && v < dipLow {
			dipLow = v
		}
	}
	if math.IsInf(dipLow, 1) || dipLow >= entry.RSI7Trigger {
		return reject("rsi7 no dip below %.1f within last %d bars", entry.RSI7Trigger, entry.DipLookback)
	}
	if set.RSI7 < entry.RSI7Recover {
		return reject("rsi7 %.1f below recovery %.1f", set.RSI7, entry.RSI7Recover)
	}
	if bounce := set.RSI7 - dipLow; bounce < entry.MinBounce {
		return reject("rsi7 bounce %.1f below min %.1f", bounce, entry.MinBounce)
	}
	return Decision{OK: true}
}

func (e *EntryEvaluator) checkMACondition(set domain.IndicatorSet, entry EntryParams) Decision {
	ma := maFor(set, entry.MAPeriod)
	if math.IsNaN(ma) {
		return reject("ma%d unavailable", entry.MAPeriod)
	}
	switch entry.MACondition {
	case MACrossover:
		if set.Close <= ma {
			return reject("price %.4f not above ma%d %.4f", set.Close, entry.MAPeriod, ma)
		}
	case MAProximity:
		lower := ma * entry.MAProximity
		if set.Close < lower || set.Close > ma {
			return reject("price %.4f outside ma%d proximity band [%.4f, %.4f]",
				set.Close, entry.MAPeriod, lower, ma)
		}
	case MAProximityOrAbove:
		lower := ma * entry.MAProximity
		if set.Close < lower {
			return reject("price %.4f below ma%d proximity floor %.4f", set.Close, entry.MAPeriod, lower)
		}
	default:
		return reject("unknown ma condition %q", entry.MACondition)
	}
	return Decision{OK: true}
}

// checkBBTouchRecover requires some bar within the lookback window to have
// touched at or below its lower band, with the current close back above the
// current band.
func (e *EntryEvaluator) checkBBTouchRecover(set domain.IndicatorSet, entry EntryParams) Decision {
	n := len(set.LowHistory)
	if n < 2 || len(set.BBLowerHistory) != n {
		return reject("lower-band history unavailable")
	}
	// Window excludes the current bar, which must be the recovery point.
	start := n - 1 - entry.BBTouchLookback
	if start < 0 {
		start = 0
	}
	touched := false
	for i := start; i < n-1; i++ {
		low, band := set.LowHistory[i], set.BBLowerHistory[i]
		if !math.IsNaN(low) && !math.IsNaN(band) && low <= band {
			touched = true
			break
		}
	}
	if !touched || set.Close <= set.BBLower {
		return reject("no lower-band touch-and-recover within last %d bars", entry.BBTouchLookback)
	}
	return Decision{OK: true}
}
