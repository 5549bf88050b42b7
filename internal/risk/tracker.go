package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Tracker maintains the per-day risk aggregate. ApplyFill must be called
// exactly once per fill, after the ledger transaction commits.
type Tracker struct {
	limits  Limits
	states  domain.RiskStateStore
	alerter Alerter
	logger  *slog.Logger
}

// NewTracker builds a Tracker. alerter may be nil.
func NewTracker(limits Limits, states domain.RiskStateStore, alerter Alerter, logger *slog.Logger) *Tracker {
	return &Tracker{
		limits:  limits,
		states:  states,
		alerter: alerter,
		logger:  logger.With(slog.String("component", "risk_tracker")),
	}
}

// ApplyFill folds a committed fill into the day's aggregate: counters on
// every fill, realized PnL and the consecutive-loss streak on SELLs. Hitting
// the loss streak arms the cooldown window and resets the streak.
func (t *Tracker) ApplyFill(ctx context.Context, trade domain.Trade) (domain.DailyRiskState, error) {
	day := trade.ExecutedAt.UTC().Truncate(24 * time.Hour)

	// The whole read-modify-write runs under the store's row lock so fills
	// committing concurrently on different symbols cannot drop each other's
	// counters.
	var armedUntil *time.Time
	state, err := t.states.Mutate(ctx, day, func(state *domain.DailyRiskState) {
		switch trade.Side {
		case domain.OrderSideBuy:
			state.BuyCount++
		case domain.OrderSideSell:
			state.SellCount++
			state.RealizedPnL += trade.RealizedPnL
			if trade.RealizedPnL < 0 {
				state.ConsecutiveLosses++
				if state.ConsecutiveLosses >= t.limits.CooldownLosses {
					until := trade.ExecutedAt.Add(t.limits.CooldownDuration)
					state.CooldownUntil = &until
					state.ConsecutiveLosses = 0
					armedUntil = &until
				}
			} else {
				state.ConsecutiveLosses = 0
			}
		}
	})
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("risk: update daily state: %w", err)
	}

	if armedUntil != nil {
		t.logger.Warn("loss streak hit, cooldown armed",
			slog.Time("until", *armedUntil))
		if t.alerter != nil {
			t.alerter.Notify("cooldown_armed", map[string]any{
				"symbol": trade.Symbol,
				"until":  *armedUntil,
			})
		}
	}
	return state, nil
}
