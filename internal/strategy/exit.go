package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// ExitDecision reports whether a position should be closed and why.
type ExitDecision struct {
	Exit   bool
	Reason domain.ExitReason
	Detail string
}

// ExitEvaluator applies the fixed-priority exit chain. Stateless per call.
type ExitEvaluator struct {
	matrix Matrix
}

// NewExitEvaluator builds an ExitEvaluator over the given matrix.
func NewExitEvaluator(matrix Matrix) *ExitEvaluator {
	return &ExitEvaluator{matrix: matrix}
}

// Evaluate checks the exit triggers in priority order: hard stop-loss,
// trailing stop, take-profit, momentum-exhaustion, max holding time. The
// first match wins. A position with a non-positive entry price never exits.
//
// The stop-loss threshold is the tighter of the entry-regime and the current
// regime values, so a regime flip can narrow risk but never widen it.
func (e *ExitEvaluator) Evaluate(pos domain.Position, price float64, set domain.IndicatorSet, current domain.Regime, now time.Time) ExitDecision {
	if pos.AvgEntryPrice <= 0 {
		return ExitDecision{}
	}
	params, ok := e.matrix[pos.EntryRegime]
	if !ok {
		params, ok = e.matrix[domain.RegimeSideways]
		if !ok {
			return ExitDecision{}
		}
	}
	exit := params.Exit
	pnl := pos.UnrealizedPnLPct(price)

	// 1. Hard stop-loss.
	stopLoss := exit.StopLossPct
	if cur, ok := e.matrix[current]; ok && cur.Exit.StopLossPct < stopLoss {
		stopLoss = cur.Exit.StopLossPct
	}
	if pnl <= -stopLoss {
		return ExitDecision{
			Exit:   true,
			Reason: domain.ExitStopLoss,
			Detail: fmt.Sprintf("loss %.2f%% breached stop %.2f%%", pnl*100, stopLoss*100),
		}
	}

	// 2. Trailing stop.
	ts := NewTrailingStop(pos.AvgEntryPrice, pos.HighWaterMark, exit.TrailingActivation, exit.TrailingStopPct)
	if ts.Triggered(price) {
		return ExitDecision{
			Exit:   true,
			Reason: domain.ExitTrailingStop,
			Detail: fmt.Sprintf("price %.4f under trail %.4f (hwm %.4f)", price, ts.StopPrice(), ts.HighWaterMark),
		}
	}

	// 3. Take-profit.
	if pnl >= exit.TakeProfitPct {
		return ExitDecision{
			Exit:   true,
			Reason: domain.ExitTakeProfit,
			Detail: fmt.Sprintf("gain %.2f%% reached target %.2f%%", pnl*100, exit.TakeProfitPct*100),
		}
	}

	// 4. Momentum exhaustion, only when already in profit.
	if !math.IsNaN(set.RSI14) && set.RSI14 > exit.RSIOverbought && pnl >= exit.RSIExitMinProfit {
		return ExitDecision{
			Exit:   true,
			Reason: domain.ExitRSIOverbought,
			Detail: fmt.Sprintf("rsi14 %.1f above %.1f with gain %.2f%%", set.RSI14, exit.RSIOverbought, pnl*100),
		}
	}

	// 5. Max holding time.
	if exit.TimeLimit > 0 && pos.HoldingTime(now) > exit.TimeLimit {
		return ExitDecision{
			Exit:   true,
			Reason: domain.ExitTimeLimit,
			Detail: fmt.Sprintf("held %s beyond limit %s", pos.HoldingTime(now).Round(time.Minute), exit.TimeLimit),
		}
	}

	return ExitDecision{}
}
