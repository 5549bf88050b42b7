package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Inserts go
// through the ledger transaction; this store serves the history reads.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, symbol, side, price, quantity, amount, strategy,
	regime, exit_reason, entry_avg_price, realized_pnl, signal, executed_at`

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, regime, exitReason string
		var signal []byte
		if err := rows.Scan(
			&t.ID, &t.Symbol, &side, &t.Price, &t.Quantity, &t.Amount,
			&t.Strategy, &regime, &exitReason,
			&t.EntryAvgPrice, &t.RealizedPnL, &signal, &t.ExecutedAt,
		); err != nil {
			return nil, err
		}
		t.Side = domain.OrderSide(side)
		t.Regime = domain.Regime(regime)
		t.ExitReason = domain.ExitReason(exitReason)
		set, err := unmarshalSignal(signal)
		if err != nil {
			return nil, fmt.Errorf("decode signal for trade %s: %w", t.ID, err)
		}
		t.Signal = set
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *TradeStore) list(ctx context.Context, where string, args []any, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE ` + where
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND executed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND executed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY executed_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// List returns trades for a symbol, newest first.
func (s *TradeStore) List(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.list(ctx, "symbol = $1", []any{symbol}, opts)
}

// ListBySide returns trades for a symbol filtered by side, newest first.
func (s *TradeStore) ListBySide(ctx context.Context, symbol string, side domain.OrderSide, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.list(ctx, "symbol = $1 AND side = $2", []any{symbol, string(side)}, opts)
}

// ListBefore returns up to limit trades executed before the cutoff, oldest
// first, for archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeSelectCols+` FROM trades
		WHERE executed_at < $1
		ORDER BY executed_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return trades, nil
}

// DeleteBefore prunes archived trades and reports how many went.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SumRealizedPnL totals realized PnL across SELLs since the given time.
func (s *TradeStore) SumRealizedPnL(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(realized_pnl), 0) FROM trades
		WHERE side = 'SELL' AND executed_at >= $1`, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum realized pnl: %w", err)
	}
	return sum, nil
}
