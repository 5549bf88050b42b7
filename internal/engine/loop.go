// Package engine runs the per-symbol decision loop and the background job
// scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/indicator"
	"github.com/coinpilot/coinpilot/internal/metrics"
	"github.com/coinpilot/coinpilot/internal/regime"
	"github.com/coinpilot/coinpilot/internal/risk"
	"github.com/coinpilot/coinpilot/internal/strategy"
)

// OrderExecutor is the loop-facing execution contract.
type OrderExecutor interface {
	ExecuteBuy(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error)
	ExecuteSell(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error)
}

// Config holds the decision-loop settings.
type Config struct {
	Symbols     []string
	Interval    time.Duration
	CandleLimit int
	// MaxDataAge suppresses decisions when the freshest candle is older
	// than this bound.
	MaxDataAge   time.Duration
	StrategyName string
	// OrderFrac sizes BUY amounts as a fraction of reference equity,
	// before the regime and volatility scalers.
	OrderFrac         float64
	HighVolMultiplier float64
}

// Loop iterates all configured symbols once per interval. A failure in one
// symbol never aborts the rest of the cycle.
type Loop struct {
	cfg        Config
	candles    domain.CandleStore
	indicators *indicator.Engine
	regimes    *regime.Service
	entries    *strategy.EntryEvaluator
	exits      *strategy.ExitEvaluator
	matrix     strategy.Matrix
	positions  domain.PositionStore
	resolver   *risk.PriceResolver
	equity     *risk.EquityService
	vol        domain.VolatilityCache
	executor   OrderExecutor
	status     domain.StatusCache
	logger     *slog.Logger
}

// NewLoop builds a decision Loop.
func NewLoop(cfg Config, candles domain.CandleStore, indicators *indicator.Engine, regimes *regime.Service, matrix strategy.Matrix, positions domain.PositionStore, resolver *risk.PriceResolver, equity *risk.EquityService, vol domain.VolatilityCache, executor OrderExecutor, status domain.StatusCache, logger *slog.Logger) *Loop {
	return &Loop{
		cfg:        cfg,
		candles:    candles,
		indicators: indicators,
		regimes:    regimes,
		entries:    strategy.NewEntryEvaluator(matrix),
		exits:      strategy.NewExitEvaluator(matrix),
		matrix:     matrix,
		positions:  positions,
		resolver:   resolver,
		equity:     equity,
		vol:        vol,
		executor:   executor,
		status:     status,
		logger:     logger.With(slog.String("component", "loop")),
	}
}

// Run drives cycles until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.logger.Info("decision loop started",
		slog.Int("symbols", len(l.cfg.Symbols)),
		slog.Duration("interval", l.cfg.Interval))

	for {
		l.Cycle(ctx)
		select {
		case <-ctx.Done():
			l.logger.Info("decision loop stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle processes every symbol once. Exported for tests and one-shot runs.
func (l *Loop) Cycle(ctx context.Context) {
	start := time.Now()
	for _, symbol := range l.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		l.processSymbol(ctx, symbol)
	}
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

// processSymbol runs one decision for one symbol, converting any panic into
// a logged error so the cycle continues.
func (l *Loop) processSymbol(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("symbol processing panicked",
				slog.String("symbol", symbol), slog.Any("panic", r))
		}
	}()
	if err := l.decide(ctx, symbol); err != nil {
		l.logger.Error("symbol processing failed",
			slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
}

func (l *Loop) decide(ctx context.Context, symbol string) error {
	now := time.Now().UTC()

	candles, err := l.candles.ListRecent(ctx, symbol, domain.Interval1m, l.cfg.CandleLimit)
	if err != nil {
		return fmt.Errorf("engine: load candles: %w", err)
	}
	if len(candles) > 0 && l.cfg.MaxDataAge > 0 {
		if age := now.Sub(candles[len(candles)-1].Timestamp); age > l.cfg.MaxDataAge {
			l.setStatus(ctx, symbol, domain.ActionSkip, domain.RegimeUnknown, 0,
				fmt.Sprintf("market data stale (%s old)", age.Round(time.Minute)))
			return nil
		}
	}

	set, err := l.indicators.Compute(symbol, domain.Interval1m, candles)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			l.setStatus(ctx, symbol, domain.ActionSkip, domain.RegimeUnknown, 0,
				fmt.Sprintf("insufficient history (%d bars)", set.BarCount))
			return nil
		}
		return err
	}

	snap := l.regimes.Current(ctx, symbol)
	l.publishRegimeMetric(symbol, snap.Regime)
	price := l.resolver.Resolve(ctx, symbol, set.Close)

	pos, err := l.positions.Get(ctx, symbol)
	switch {
	case err == nil:
		return l.decideExit(ctx, symbol, pos, price, set, snap.Regime, now)
	case errors.Is(err, domain.ErrNotFound):
		return l.decideEntry(ctx, symbol, price, set, snap.Regime)
	default:
		return fmt.Errorf("engine: load position: %w", err)
	}
}

func (l *Loop) decideExit(ctx context.Context, symbol string, pos domain.Position, price float64, set domain.IndicatorSet, current domain.Regime, now time.Time) error {
	// Fold the latest price into the persisted high-water mark before the
	// exit evaluation reads it.
	if price > pos.HighWaterMark {
		if err := l.positions.SetHighWaterMark(ctx, symbol, price); err != nil {
			l.logger.Warn("high-water-mark update failed",
				slog.String("symbol", symbol), slog.String("error", err.Error()))
		} else {
			pos.HighWaterMark = price
		}
	}

	decision := l.exits.Evaluate(pos, price, set, current, now)
	if !decision.Exit {
		l.setStatus(ctx, symbol, domain.ActionHold, current, price, "holding: no exit trigger")
		return nil
	}

	result, err := l.executor.ExecuteSell(ctx, domain.OrderRequest{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       domain.OrderSideSell,
		Price:      price,
		Quantity:   pos.Quantity,
		Strategy:   l.cfg.StrategyName,
		Regime:     current,
		ExitReason: decision.Reason,
		Indicators: set,
		CreatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("engine: sell %s: %w", symbol, err)
	}
	reason := fmt.Sprintf("%s: %s", decision.Reason, decision.Detail)
	if !result.Filled() {
		reason = fmt.Sprintf("sell blocked: %s", result.Reason)
	}
	l.setStatus(ctx, symbol, domain.ActionSell, current, price, reason)
	return nil
}

func (l *Loop) decideEntry(ctx context.Context, symbol string, price float64, set domain.IndicatorSet, current domain.Regime) error {
	decision := l.entries.Evaluate(set, current)
	if !decision.OK {
		l.setStatus(ctx, symbol, domain.ActionHold, current, price, decision.Reason)
		return nil
	}

	amount, err := l.orderAmount(ctx, symbol, current)
	if err != nil {
		return err
	}
	result, err := l.executor.ExecuteBuy(ctx, domain.OrderRequest{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       domain.OrderSideBuy,
		Price:      price,
		Amount:     amount,
		Strategy:   l.cfg.StrategyName,
		Regime:     current,
		Indicators: set,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("engine: buy %s: %w", symbol, err)
	}
	reason := decision.Reason
	if !result.Filled() {
		reason = result.Reason
	}
	l.setStatus(ctx, symbol, domain.ActionBuy, current, price, reason)
	return nil
}

// orderAmount sizes a BUY from the frozen reference equity, scaled by the
// regime's position-size ratio and contracted under high volatility.
func (l *Loop) orderAmount(ctx context.Context, symbol string, current domain.Regime) (float64, error) {
	reference, err := l.equity.Reference(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	amount := reference * l.cfg.OrderFrac
	if params, ok := l.matrix[current]; ok {
		amount *= params.PositionSizeRatio
	}
	if snap, err := l.vol.Get(ctx, symbol); err == nil && snap.Regime == domain.VolRegimeHigh {
		amount *= l.cfg.HighVolMultiplier
	}
	return amount, nil
}

func (l *Loop) setStatus(ctx context.Context, symbol string, action domain.Action, current domain.Regime, price float64, reason string) {
	status := domain.SymbolStatus{
		Symbol:    symbol,
		Action:    action,
		Regime:    current,
		Price:     price,
		Reason:    reason,
		UpdatedAt: time.Now().UTC(),
	}
	if err := l.status.SetSymbol(ctx, status); err != nil {
		l.logger.Warn("status cache write failed",
			slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
}

func (l *Loop) publishRegimeMetric(symbol string, current domain.Regime) {
	for _, r := range []domain.Regime{domain.RegimeBull, domain.RegimeSideways, domain.RegimeBear, domain.RegimeUnknown} {
		v := 0.0
		if r == current {
			v = 1.0
		}
		metrics.RegimeState.WithLabelValues(symbol, string(r)).Set(v)
	}
}
