// Package executor holds the atomic order-execution protocol: risk gate,
// oracle approval, and the ledger mutation that keeps cash, position, and
// trade history mutually consistent under per-symbol concurrency.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Quantities below this are treated as a fully closed position.
const qtyEpsilon = 1e-12

// Ledger performs the atomic cash/position/history mutation for a single
// fill. Every call runs inside one LedgerTx: the account row and the symbol's
// position row are locked for the duration, so concurrent symbols serialize
// on the shared account.
type Ledger struct {
	txm    domain.TxManager
	logger *slog.Logger
}

// NewLedger builds a Ledger over the transaction manager.
func NewLedger(txm domain.TxManager, logger *slog.Logger) *Ledger {
	return &Ledger{txm: txm, logger: logger.With(slog.String("component", "ledger"))}
}

// Buy debits cash and opens or extends the symbol's position with
// weighted-average re-pricing. The high-water mark never ends below the fill
// price. Insufficient cash at execution time returns a result, not an error,
// and commits nothing.
func (l *Ledger) Buy(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error) {
	if req.Price <= 0 || req.Amount <= 0 {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: buy %s: non-positive price or amount", req.Symbol)
	}

	tx, err := l.txm.Begin(ctx)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := tx.AccountForUpdate(ctx)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: lock account: %w", err)
	}
	if account.Balance < req.Amount {
		return domain.ExecutionResult{
			Kind:   domain.ResultInsufficientFunds,
			Reason: fmt.Sprintf("balance %.2f below amount %.2f", account.Balance, req.Amount),
		}, nil
	}

	qty := req.Amount / req.Price
	now := time.Now().UTC()

	pos, err := tx.PositionForUpdate(ctx, req.Symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		pos = domain.Position{
			Symbol:        req.Symbol,
			Quantity:      qty,
			AvgEntryPrice: req.Price,
			EntryRegime:   req.Regime,
			HighWaterMark: req.Price,
			OpenedAt:      now,
		}
	case err != nil:
		return domain.ExecutionResult{}, fmt.Errorf("ledger: lock position %s: %w", req.Symbol, err)
	default:
		oldQty, oldAvg := pos.Quantity, pos.AvgEntryPrice
		pos.Quantity = oldQty + qty
		pos.AvgEntryPrice = (oldAvg*oldQty + req.Price*qty) / pos.Quantity
		if req.Price > pos.HighWaterMark {
			pos.HighWaterMark = req.Price
		}
	}
	pos.UpdatedAt = now

	newBalance := account.Balance - req.Amount
	if err := tx.UpsertPosition(ctx, pos); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: upsert position %s: %w", req.Symbol, err)
	}
	if err := tx.UpdateBalance(ctx, newBalance); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: debit: %w", err)
	}
	if err := tx.InsertTrade(ctx, domain.Trade{
		ID:         newTradeID(req.ID),
		Symbol:     req.Symbol,
		Side:       domain.OrderSideBuy,
		Price:      req.Price,
		Quantity:   qty,
		Amount:     req.Amount,
		Strategy:   req.Strategy,
		Regime:     req.Regime,
		Signal:     req.Indicators,
		ExecutedAt: now,
	}); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: record buy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: commit buy %s: %w", req.Symbol, err)
	}

	l.logger.Info("buy filled",
		slog.String("symbol", req.Symbol),
		slog.Float64("price", req.Price),
		slog.Float64("qty", qty),
		slog.Float64("balance", newBalance))
	return domain.ExecutionResult{
		Kind:       domain.ResultFilled,
		FillPrice:  req.Price,
		FillQty:    qty,
		NewBalance: newBalance,
	}, nil
}

// Sell credits cash and decrements the position, deleting the row when the
// quantity reaches zero. The trade record carries the exit reason and the
// entry average price the realized PnL was computed against. Insufficient
// quantity returns a result, not an error, and commits nothing.
func (l *Ledger) Sell(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error) {
	if req.Price <= 0 || req.Quantity <= 0 {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: sell %s: non-positive price or quantity", req.Symbol)
	}

	tx, err := l.txm.Begin(ctx)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := tx.AccountForUpdate(ctx)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: lock account: %w", err)
	}
	pos, err := tx.PositionForUpdate(ctx, req.Symbol)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && pos.Quantity+qtyEpsilon < req.Quantity) {
		held := 0.0
		if err == nil {
			held = pos.Quantity
		}
		return domain.ExecutionResult{
			Kind:   domain.ResultInsufficientQty,
			Reason: fmt.Sprintf("insufficient quantity: held %.8f, requested %.8f", held, req.Quantity),
		}, nil
	}
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: lock position %s: %w", req.Symbol, err)
	}

	now := time.Now().UTC()
	proceeds := req.Price * req.Quantity
	realized := (req.Price - pos.AvgEntryPrice) * req.Quantity
	newBalance := account.Balance + proceeds

	remaining := pos.Quantity - req.Quantity
	if remaining <= qtyEpsilon {
		if err := tx.DeletePosition(ctx, req.Symbol); err != nil {
			return domain.ExecutionResult{}, fmt.Errorf("ledger: close position %s: %w", req.Symbol, err)
		}
	} else {
		pos.Quantity = remaining
		pos.UpdatedAt = now
		if err := tx.UpsertPosition(ctx, pos); err != nil {
			return domain.ExecutionResult{}, fmt.Errorf("ledger: shrink position %s: %w", req.Symbol, err)
		}
	}

	if err := tx.UpdateBalance(ctx, newBalance); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: credit: %w", err)
	}
	if err := tx.InsertTrade(ctx, domain.Trade{
		ID:            newTradeID(req.ID),
		Symbol:        req.Symbol,
		Side:          domain.OrderSideSell,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Amount:        proceeds,
		Strategy:      req.Strategy,
		Regime:        req.Regime,
		ExitReason:    req.ExitReason,
		EntryAvgPrice: pos.AvgEntryPrice,
		RealizedPnL:   realized,
		Signal:        req.Indicators,
		ExecutedAt:    now,
	}); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: record sell: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("ledger: commit sell %s: %w", req.Symbol, err)
	}

	l.logger.Info("sell filled",
		slog.String("symbol", req.Symbol),
		slog.String("exit_reason", string(req.ExitReason)),
		slog.Float64("price", req.Price),
		slog.Float64("qty", req.Quantity),
		slog.Float64("pnl", realized))
	return domain.ExecutionResult{
		Kind:        domain.ResultFilled,
		FillPrice:   req.Price,
		FillQty:     req.Quantity,
		RealizedPnL: realized,
		NewBalance:  newBalance,
	}, nil
}

func newTradeID(candidateID string) string {
	if candidateID != "" {
		return candidateID
	}
	return uuid.NewString()
}
