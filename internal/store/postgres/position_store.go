package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. All writes
// that move money go through the ledger transaction instead; this store only
// serves reads plus the lock-free high-water-mark fold.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `symbol, quantity, avg_entry_price, entry_regime,
	high_water_mark, opened_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var regime string
	err := row.Scan(&p.Symbol, &p.Quantity, &p.AvgEntryPrice, &regime,
		&p.HighWaterMark, &p.OpenedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Position{}, err
	}
	p.EntryRegime = domain.Regime(regime)
	return p, nil
}

// Get returns the open position for a symbol, or ErrNotFound.
func (s *PositionStore) Get(ctx context.Context, symbol string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE symbol = $1`, symbol)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", symbol, err)
	}
	return p, nil
}

// ListOpen returns every open position ordered by age.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// Count returns the number of open positions.
func (s *PositionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM positions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count positions: %w", err)
	}
	return n, nil
}

// SetHighWaterMark raises the mark; the guard in the WHERE clause means it
// never lowers an existing one, even under concurrent folds.
func (s *PositionStore) SetHighWaterMark(ctx context.Context, symbol string, mark float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE positions SET high_water_mark = $2, updated_at = NOW()
		WHERE symbol = $1 AND high_water_mark < $2`, symbol, mark)
	if err != nil {
		return fmt.Errorf("postgres: set high-water mark %s: %w", symbol, err)
	}
	return nil
}
