package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// CandleStore implements domain.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *pgxpool.Pool
}

// NewCandleStore creates a CandleStore backed by the given connection pool.
func NewCandleStore(pool *pgxpool.Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// UpsertBatch writes bars using pgx Batch; re-fetched bars overwrite in
// place so overlapping backfill windows are harmless.
func (s *CandleStore) UpsertBatch(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	const query = `
		INSERT INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, interval, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(query,
			c.Symbol, string(c.Interval), c.Timestamp,
			c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range candles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert candles: %w", err)
		}
	}
	return nil
}

// ListRecent returns up to limit bars ordered oldest→newest, ending at the
// most recent stored bar.
func (s *CandleStore) ListRecent(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Candle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, interval, ts, open, high, low, close, volume
		FROM (
			SELECT symbol, interval, ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = $1 AND interval = $2
			ORDER BY ts DESC
			LIMIT $3
		) recent
		ORDER BY ts ASC`, symbol, string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candles: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		var interval string
		if err := rows.Scan(&c.Symbol, &interval, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan candle: %w", err)
		}
		c.Interval = domain.Interval(interval)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan candles: %w", err)
	}
	return candles, nil
}

// LatestClose returns the close and bar-open time of the newest stored bar.
func (s *CandleStore) LatestClose(ctx context.Context, symbol string, interval domain.Interval) (float64, time.Time, error) {
	var close float64
	var ts time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT close, ts FROM candles
		WHERE symbol = $1 AND interval = $2
		ORDER BY ts DESC LIMIT 1`, symbol, string(interval)).Scan(&close, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("postgres: latest close %s: %w", symbol, err)
	}
	return close, ts, nil
}

// DeleteBefore prunes bars older than the cutoff and reports how many went.
func (s *CandleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM candles WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete candles: %w", err)
	}
	return tag.RowsAffected(), nil
}
