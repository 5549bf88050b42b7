package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Limits configures the pre-trade validation chain.
type Limits struct {
	MaxDailyLossFrac       float64
	MaxDailyTrades         int
	MaxPerOrderFrac        float64
	MaxTotalExposureFrac   float64
	MaxConcurrentPositions int
	AllowDuplicateEntries  bool
	// FeeBufferFrac reserves a slice of cash for fees and slippage on BUYs.
	FeeBufferFrac     float64
	CooldownLosses    int
	CooldownDuration  time.Duration
	HighVolMultiplier float64
}

// DefaultLimits returns the standard risk limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDailyLossFrac:       0.05,
		MaxDailyTrades:         10,
		MaxPerOrderFrac:        0.05,
		MaxTotalExposureFrac:   0.20,
		MaxConcurrentPositions: 3,
		AllowDuplicateEntries:  false,
		FeeBufferFrac:          0.005,
		CooldownLosses:         3,
		CooldownDuration:       2 * time.Hour,
		HighVolMultiplier:      0.5,
	}
}

// CheckResult is the outcome of the validation chain. Check names the
// specific failed check for auditing.
type CheckResult struct {
	OK     bool
	Check  string
	Reason string
}

func failed(check, format string, args ...any) CheckResult {
	return CheckResult{Check: check, Reason: fmt.Sprintf(format, args...)}
}

// Alerter receives fire-and-forget risk events.
type Alerter interface {
	Notify(event string, payload map[string]any)
}

// Validator runs the ordered, fail-fast pre-trade chain for BUY orders.
// SELL orders never pass through it; only new exposure is risk-gated.
type Validator struct {
	limits    Limits
	states    domain.RiskStateStore
	positions domain.PositionStore
	account   domain.AccountStore
	equity    *EquityService
	resolver  *PriceResolver
	vol       domain.VolatilityCache
	audit     domain.AuditStore
	alerter   Alerter
	logger    *slog.Logger
}

// NewValidator builds a Validator. alerter may be nil.
func NewValidator(limits Limits, states domain.RiskStateStore, positions domain.PositionStore, account domain.AccountStore, equity *EquityService, resolver *PriceResolver, vol domain.VolatilityCache, audit domain.AuditStore, alerter Alerter, logger *slog.Logger) *Validator {
	return &Validator{
		limits:    limits,
		states:    states,
		positions: positions,
		account:   account,
		equity:    equity,
		resolver:  resolver,
		vol:       vol,
		audit:     audit,
		alerter:   alerter,
		logger:    logger.With(slog.String("component", "risk")),
	}
}

// CheckOrder validates a proposed BUY of `amount` cash for the symbol. The
// first failing check short-circuits; its name and reason are audited. A
// breached daily-loss cap additionally sets the halted flag before failing.
func (v *Validator) CheckOrder(ctx context.Context, symbol string, amount float64, now time.Time) (CheckResult, error) {
	state, err := v.states.GetOrCreate(ctx, now.UTC().Truncate(24*time.Hour))
	if err != nil {
		return CheckResult{}, fmt.Errorf("risk: load daily state: %w", err)
	}
	reference, err := v.equity.Reference(ctx, now)
	if err != nil {
		return CheckResult{}, err
	}

	result := v.runChain(ctx, symbol, amount, now, &state, reference)
	if !result.OK {
		v.recordViolation(ctx, symbol, amount, result)
	}
	return result, nil
}

func (v *Validator) runChain(ctx context.Context, symbol string, amount float64, now time.Time, state *domain.DailyRiskState, reference float64) CheckResult {
	// 1. Halt flag.
	if state.Halted {
		return failed("halted", "trading halted for the day")
	}

	// 2. Cooldown window.
	if state.InCooldown(now) {
		return failed("cooldown", "cooldown active until %s", state.CooldownUntil.UTC().Format(time.RFC3339))
	}

	// 3. Daily trade-count cap.
	if state.BuyCount >= v.limits.MaxDailyTrades {
		return failed("daily_trades", "daily buy count %d at cap %d", state.BuyCount, v.limits.MaxDailyTrades)
	}

	// 4. Daily loss cap. Breach halts the rest of the day.
	lossCap := reference * v.limits.MaxDailyLossFrac
	if state.RealizedPnL <= -lossCap {
		state.Halted = true
		if _, err := v.states.Mutate(ctx, state.Date, func(st *domain.DailyRiskState) {
			st.Halted = true
		}); err != nil {
			v.logger.Error("failed to persist halt flag", slog.String("error", err.Error()))
		}
		if v.alerter != nil {
			v.alerter.Notify("trading_halted", map[string]any{
				"daily_pnl": state.RealizedPnL,
				"loss_cap":  lossCap,
			})
		}
		return failed("daily_loss", "daily pnl %.2f breached loss cap %.2f, halting", state.RealizedPnL, lossCap)
	}

	// 5. Per-order cap, contracted under high volatility.
	multiplier := v.volatilityMultiplier(ctx, symbol)
	orderCap := reference * v.limits.MaxPerOrderFrac * multiplier
	if amount > orderCap {
		return failed("order_size", "amount %.2f exceeds per-order cap %.2f (vol multiplier %.2f)", amount, orderCap, multiplier)
	}

	// 6. Available cash net of the fee buffer.
	account, err := v.account.Get(ctx)
	if err != nil {
		return failed("cash", "account unavailable: %v", err)
	}
	available := account.Balance * (1 - v.limits.FeeBufferFrac)
	if amount > available {
		return failed("cash", "amount %.2f exceeds available cash %.2f", amount, available)
	}

	// 7. Total exposure cap.
	positions, err := v.positions.ListOpen(ctx)
	if err != nil {
		return failed("exposure", "positions unavailable: %v", err)
	}
	exposure := v.resolver.Exposure(ctx, positions)
	exposureCap := reference * v.limits.MaxTotalExposureFrac
	if exposure+amount > exposureCap {
		return failed("exposure", "exposure %.2f + amount %.2f exceeds cap %.2f", exposure, amount, exposureCap)
	}

	// 8. Concurrent-position cap; adding to an existing position is exempt.
	holds := false
	for _, pos := range positions {
		if pos.Symbol == symbol {
			holds = true
			break
		}
	}
	if !holds && len(positions) >= v.limits.MaxConcurrentPositions {
		return failed("position_count", "open positions %d at cap %d", len(positions), v.limits.MaxConcurrentPositions)
	}

	// 9. Duplicate entry.
	if holds && !v.limits.AllowDuplicateEntries {
		return failed("duplicate_entry", "position already open for %s", symbol)
	}

	return CheckResult{OK: true}
}

// volatilityMultiplier contracts order size when the volatility state cache
// signals a high-volatility regime. Cache failure degrades to nominal.
func (v *Validator) volatilityMultiplier(ctx context.Context, symbol string) float64 {
	snap, err := v.vol.Get(ctx, symbol)
	if err != nil {
		return 1.0
	}
	if snap.Regime == domain.VolRegimeHigh {
		return v.limits.HighVolMultiplier
	}
	return 1.0
}

func (v *Validator) recordViolation(ctx context.Context, symbol string, amount float64, result CheckResult) {
	v.logger.Warn("order rejected",
		slog.String("symbol", symbol),
		slog.String("check", result.Check),
		slog.String("reason", result.Reason))
	if err := v.audit.Log(ctx, domain.RiskAudit{
		Symbol: symbol,
		Check:  result.Check,
		Reason: result.Reason,
		Amount: amount,
	}); err != nil {
		v.logger.Error("risk audit write failed", slog.String("error", err.Error()))
	}
	if v.alerter != nil {
		v.alerter.Notify("risk_rejected", map[string]any{
			"symbol": symbol,
			"check":  result.Check,
			"reason": result.Reason,
			"amount": amount,
		})
	}
}
