package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/metrics"
	"github.com/coinpilot/coinpilot/internal/oracle"
	"github.com/coinpilot/coinpilot/internal/risk"
)

// Notifier receives fire-and-forget trade events. Delivery failure must
// never affect trading state.
type Notifier interface {
	Notify(event string, payload map[string]any)
}

// RiskChecker validates whether a BUY passes the pre-trade risk chain.
type RiskChecker interface {
	CheckOrder(ctx context.Context, symbol string, amount float64, now time.Time) (risk.CheckResult, error)
}

// FillTracker folds committed fills into the daily risk aggregate.
type FillTracker interface {
	ApplyFill(ctx context.Context, trade domain.Trade) (domain.DailyRiskState, error)
}

// Executor drives one order attempt end to end: per-symbol lock, risk chain
// (BUYs only), oracle approval, ledger mutation, and the post-commit risk
// state update.
type Executor struct {
	ledger   *Ledger
	risk     RiskChecker
	tracker  FillTracker
	approver oracle.Approver
	guard    *CandidateGuard
	locks    domain.LockManager
	audit    domain.AuditStore
	notifier Notifier
	logger   *slog.Logger
}

// NewExecutor builds an Executor. notifier may be nil.
func NewExecutor(ledger *Ledger, validator RiskChecker, tracker FillTracker, approver oracle.Approver, locks domain.LockManager, audit domain.AuditStore, notifier Notifier, logger *slog.Logger) *Executor {
	return &Executor{
		ledger:   ledger,
		risk:     validator,
		tracker:  tracker,
		approver: approver,
		guard:    NewCandidateGuard(10 * time.Minute),
		locks:    locks,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// ExecuteBuy risk-gates, seeks oracle approval for, and executes a BUY.
// Rejections come back as results with a Kind and reason; only
// infrastructure failures are errors.
func (e *Executor) ExecuteBuy(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error) {
	unlock, err := e.locks.Acquire(ctx, "exec:"+req.Symbol, 30*time.Second)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	defer unlock()

	check, err := e.risk.CheckOrder(ctx, req.Symbol, req.Amount, time.Now().UTC())
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if !check.OK {
		metrics.RejectionsTotal.WithLabelValues(req.Symbol, "risk").Inc()
		return domain.ExecutionResult{Kind: domain.ResultRiskRejected, Reason: check.Reason}, nil
	}

	// The oracle gets exactly one consultation per candidate; a repeat of
	// the same candidate ID is conservatively rejected.
	if e.guard.Seen(req.ID) {
		metrics.RejectionsTotal.WithLabelValues(req.Symbol, "oracle_dedup").Inc()
		return domain.ExecutionResult{
			Kind:   domain.ResultOracleRejected,
			Reason: "candidate already evaluated",
		}, nil
	}
	verdict, err := e.approver.Evaluate(ctx, oracle.Request{
		Symbol:     req.Symbol,
		Strategy:   req.Strategy,
		Regime:     req.Regime,
		Amount:     req.Amount,
		Indicators: req.Indicators,
	})
	if err != nil || !verdict.Approved {
		reason := verdict.Reasoning
		if reason == "" {
			reason = "oracle rejected"
		}
		e.recordRejection(ctx, req, "oracle", reason)
		metrics.RejectionsTotal.WithLabelValues(req.Symbol, "oracle").Inc()
		return domain.ExecutionResult{Kind: domain.ResultOracleRejected, Reason: reason}, nil
	}

	result, err := e.ledger.Buy(ctx, req)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if !result.Filled() {
		e.recordRejection(ctx, req, "ledger", result.Reason)
		metrics.RejectionsTotal.WithLabelValues(req.Symbol, "ledger").Inc()
		return result, nil
	}

	e.afterFill(ctx, req, result, domain.OrderSideBuy)
	return result, nil
}

// ExecuteSell executes a SELL. The risk chain is skipped; only new exposure
// is risk-gated. Insufficient quantity comes back as a result.
func (e *Executor) ExecuteSell(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error) {
	unlock, err := e.locks.Acquire(ctx, "exec:"+req.Symbol, 30*time.Second)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	defer unlock()

	result, err := e.ledger.Sell(ctx, req)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if !result.Filled() {
		e.recordRejection(ctx, req, "ledger", result.Reason)
		metrics.RejectionsTotal.WithLabelValues(req.Symbol, "ledger").Inc()
		return result, nil
	}

	e.afterFill(ctx, req, result, domain.OrderSideSell)
	return result, nil
}

// afterFill updates the daily risk aggregate exactly once per committed fill
// and emits the fire-and-forget notification.
func (e *Executor) afterFill(ctx context.Context, req domain.OrderRequest, result domain.ExecutionResult, side domain.OrderSide) {
	state, err := e.tracker.ApplyFill(ctx, domain.Trade{
		Symbol:      req.Symbol,
		Side:        side,
		Price:       result.FillPrice,
		Quantity:    result.FillQty,
		RealizedPnL: result.RealizedPnL,
		ExecutedAt:  time.Now().UTC(),
	})
	if err != nil {
		e.logger.Error("risk state update failed after fill",
			slog.String("symbol", req.Symbol), slog.String("error", err.Error()))
	} else {
		metrics.RealizedPnL.Set(state.RealizedPnL)
	}

	metrics.FillsTotal.WithLabelValues(req.Symbol, string(side)).Inc()
	metrics.Balance.Set(result.NewBalance)

	if e.notifier != nil {
		payload := map[string]any{
			"symbol":  req.Symbol,
			"side":    string(side),
			"price":   result.FillPrice,
			"qty":     result.FillQty,
			"balance": result.NewBalance,
		}
		if side == domain.OrderSideSell {
			payload["pnl"] = result.RealizedPnL
			payload["exit_reason"] = string(req.ExitReason)
		}
		e.notifier.Notify("order_filled", payload)
	}
}

// recordRejection writes the rejection to the audit history so operators can
// reconstruct why an order never reached the ledger.
func (e *Executor) recordRejection(ctx context.Context, req domain.OrderRequest, stage, reason string) {
	if err := e.audit.Log(ctx, domain.RiskAudit{
		Symbol: req.Symbol,
		Check:  stage,
		Reason: reason,
		Amount: req.Amount,
	}); err != nil {
		e.logger.Warn("rejection audit write failed",
			slog.String("symbol", req.Symbol), slog.String("error", err.Error()))
	}
	if e.notifier != nil {
		e.notifier.Notify("order_rejected", map[string]any{
			"symbol": req.Symbol,
			"stage":  stage,
			"reason": reason,
		})
	}
}
