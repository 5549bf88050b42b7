package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// RiskStateStore implements domain.RiskStateStore using PostgreSQL.
type RiskStateStore struct {
	pool *pgxpool.Pool
}

// NewRiskStateStore creates a RiskStateStore backed by the given connection
// pool.
func NewRiskStateStore(pool *pgxpool.Pool) *RiskStateStore {
	return &RiskStateStore{pool: pool}
}

// GetOrCreate returns the row for the given UTC day, inserting a zeroed row
// on first access. The insert-then-select keeps concurrent first readers
// from racing.
func (s *RiskStateStore) GetOrCreate(ctx context.Context, day time.Time) (domain.DailyRiskState, error) {
	day = day.UTC().Truncate(24 * time.Hour)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_risk_state (date) VALUES ($1)
		ON CONFLICT (date) DO NOTHING`, day)
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: init risk state: %w", err)
	}

	var st domain.DailyRiskState
	err = s.pool.QueryRow(ctx, `
		SELECT date, realized_pnl, buy_count, sell_count,
		       consecutive_losses, cooldown_until, halted, updated_at
		FROM daily_risk_state WHERE date = $1`, day,
	).Scan(&st.Date, &st.RealizedPnL, &st.BuyCount, &st.SellCount,
		&st.ConsecutiveLosses, &st.CooldownUntil, &st.Halted, &st.UpdatedAt)
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: get risk state: %w", err)
	}
	st.Date = st.Date.UTC()
	return st, nil
}

// Mutate applies fn to the day's row inside a transaction holding the row
// lock, so fills committing concurrently on different symbols cannot
// overwrite each other's counters.
func (s *RiskStateStore) Mutate(ctx context.Context, day time.Time, fn func(*domain.DailyRiskState)) (domain.DailyRiskState, error) {
	day = day.UTC().Truncate(24 * time.Hour)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: begin risk state tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO daily_risk_state (date) VALUES ($1)
		ON CONFLICT (date) DO NOTHING`, day)
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: init risk state: %w", err)
	}

	var st domain.DailyRiskState
	err = tx.QueryRow(ctx, `
		SELECT date, realized_pnl, buy_count, sell_count,
		       consecutive_losses, cooldown_until, halted, updated_at
		FROM daily_risk_state WHERE date = $1
		FOR UPDATE`, day,
	).Scan(&st.Date, &st.RealizedPnL, &st.BuyCount, &st.SellCount,
		&st.ConsecutiveLosses, &st.CooldownUntil, &st.Halted, &st.UpdatedAt)
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: lock risk state: %w", err)
	}
	st.Date = st.Date.UTC()

	fn(&st)

	_, err = tx.Exec(ctx, `
		UPDATE daily_risk_state SET
			realized_pnl = $2,
			buy_count = $3,
			sell_count = $4,
			consecutive_losses = $5,
			cooldown_until = $6,
			halted = $7,
			updated_at = NOW()
		WHERE date = $1`,
		day, st.RealizedPnL, st.BuyCount, st.SellCount,
		st.ConsecutiveLosses, st.CooldownUntil, st.Halted)
	if err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: update risk state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.DailyRiskState{}, fmt.Errorf("postgres: commit risk state: %w", err)
	}
	return st, nil
}
