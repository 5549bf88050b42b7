package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// equityTTL keeps yesterday's snapshot around briefly for post-mortems while
// guaranteeing the key set stays small.
const equityTTL = 48 * time.Hour

// EquityCache implements domain.EquityCache at "equity:{yyyy-mm-dd}". The
// entry freezes the day's reference equity so every process sizes against
// the same denominator.
type EquityCache struct {
	rdb *redis.Client
}

// NewEquityCache creates an EquityCache backed by the given Client.
func NewEquityCache(c *Client) *EquityCache {
	return &EquityCache{rdb: c.Underlying()}
}

func equityKey(day time.Time) string {
	return "equity:" + day.UTC().Format("2006-01-02")
}

type equityRecord struct {
	Date       time.Time `json:"date"`
	Equity     float64   `json:"equity"`
	Overridden bool      `json:"overridden"`
	ComputedAt time.Time `json:"computed_at"`
}

// Set stores the frozen snapshot. SetNX keeps the first writer's value: two
// processes racing on the same day must agree on one denominator.
func (ec *EquityCache) Set(ctx context.Context, ref domain.ReferenceEquity) error {
	data, err := json.Marshal(equityRecord{
		Date:       ref.Date,
		Equity:     ref.Equity,
		Overridden: ref.Overridden,
		ComputedAt: ref.ComputedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: encode equity: %w", err)
	}
	if err := ec.rdb.SetNX(ctx, equityKey(ref.Date), data, equityTTL).Err(); err != nil {
		return fmt.Errorf("redis: set equity: %w", err)
	}
	return nil
}

// Get returns the snapshot frozen for the given UTC day, or ErrNotFound.
func (ec *EquityCache) Get(ctx context.Context, day time.Time) (domain.ReferenceEquity, error) {
	data, err := ec.rdb.Get(ctx, equityKey(day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ReferenceEquity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ReferenceEquity{}, fmt.Errorf("redis: get equity: %w", err)
	}
	var rec equityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ReferenceEquity{}, fmt.Errorf("redis: decode equity: %w", err)
	}
	return domain.ReferenceEquity{
		Date:       rec.Date,
		Equity:     rec.Equity,
		Overridden: rec.Overridden,
		ComputedAt: rec.ComputedAt,
	}, nil
}

// Compile-time interface check.
var _ domain.EquityCache = (*EquityCache)(nil)
