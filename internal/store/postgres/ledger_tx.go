package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// TxManager implements domain.TxManager over a pgx pool.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a TxManager backed by the given connection pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// Begin opens a ledger transaction. Row locks taken by the ForUpdate reads
// are held until Commit or Rollback.
func (m *TxManager) Begin(ctx context.Context) (domain.LedgerTx, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin ledger tx: %w", err)
	}
	return &ledgerTx{tx: tx}, nil
}

// ledgerTx implements domain.LedgerTx on one pgx transaction.
type ledgerTx struct {
	tx        pgx.Tx
	committed bool
}

var _ domain.LedgerTx = (*ledgerTx)(nil)

// AccountForUpdate locks and returns the shared cash account row.
func (t *ledgerTx) AccountForUpdate(ctx context.Context) (domain.Account, error) {
	var a domain.Account
	err := t.tx.QueryRow(ctx,
		`SELECT id, balance, updated_at FROM account WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&a.ID, &a.Balance, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: lock account: %w", err)
	}
	return a, nil
}

// PositionForUpdate locks and returns the symbol's position row, or
// ErrNotFound when the symbol has no open position.
func (t *ledgerTx) PositionForUpdate(ctx context.Context, symbol string) (domain.Position, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE symbol = $1 FOR UPDATE`,
		symbol)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: lock position %s: %w", symbol, err)
	}
	return p, nil
}

// UpsertPosition writes the position row inside the transaction.
func (t *ledgerTx) UpsertPosition(ctx context.Context, pos domain.Position) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO positions (symbol, quantity, avg_entry_price, entry_regime,
			high_water_mark, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_entry_price = EXCLUDED.avg_entry_price,
			high_water_mark = GREATEST(positions.high_water_mark, EXCLUDED.high_water_mark),
			updated_at = NOW()`,
		pos.Symbol, pos.Quantity, pos.AvgEntryPrice, string(pos.EntryRegime),
		pos.HighWaterMark, pos.OpenedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", pos.Symbol, err)
	}
	return nil
}

// DeletePosition removes a fully-closed position row.
func (t *ledgerTx) DeletePosition(ctx context.Context, symbol string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM positions WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateBalance overwrites the locked account balance.
func (t *ledgerTx) UpdateBalance(ctx context.Context, balance float64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE account SET balance = $2, updated_at = NOW() WHERE id = $1`,
		accountID, balance)
	if err != nil {
		return fmt.Errorf("postgres: update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// InsertTrade appends the fill record inside the transaction.
func (t *ledgerTx) InsertTrade(ctx context.Context, trade domain.Trade) error {
	signal, err := marshalSignal(trade.Signal)
	if err != nil {
		return fmt.Errorf("postgres: encode signal: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO trades (id, symbol, side, price, quantity, amount, strategy,
			regime, exit_reason, entry_avg_price, realized_pnl, signal, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		trade.ID, trade.Symbol, string(trade.Side), trade.Price, trade.Quantity,
		trade.Amount, trade.Strategy, string(trade.Regime), string(trade.ExitReason),
		trade.EntryAvgPrice, trade.RealizedPnL, signal, trade.ExecutedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", trade.ID, err)
	}
	return nil
}

// Commit makes all staged writes visible at once.
func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit ledger tx: %w", err)
	}
	t.committed = true
	return nil
}

// Rollback discards the transaction. After Commit it is a no-op so callers
// can keep it in a defer.
func (t *ledgerTx) Rollback(ctx context.Context) error {
	if t.committed {
		return nil
	}
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback ledger tx: %w", err)
	}
	return nil
}
