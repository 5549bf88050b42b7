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

// volatilityTTL outlasts the re-estimation cadence; an expired entry makes
// the risk chain fall back to the normal-volatility multiplier.
const volatilityTTL = 6 * time.Hour

// VolatilityCache implements domain.VolatilityCache at "vol:{symbol}".
type VolatilityCache struct {
	rdb *redis.Client
}

// NewVolatilityCache creates a VolatilityCache backed by the given Client.
func NewVolatilityCache(c *Client) *VolatilityCache {
	return &VolatilityCache{rdb: c.Underlying()}
}

func volKey(symbol string) string {
	return "vol:" + symbol
}

type volRecord struct {
	Symbol     string    `json:"symbol"`
	Annualized float64   `json:"annualized"`
	Regime     string    `json:"regime"`
	ComputedAt time.Time `json:"computed_at"`
}

// Set stores the volatility snapshot with the cache TTL.
func (vc *VolatilityCache) Set(ctx context.Context, snap domain.VolatilitySnapshot) error {
	data, err := json.Marshal(volRecord{
		Symbol:     snap.Symbol,
		Annualized: snap.Annualized,
		Regime:     string(snap.Regime),
		ComputedAt: snap.ComputedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: encode volatility %s: %w", snap.Symbol, err)
	}
	if err := vc.rdb.Set(ctx, volKey(snap.Symbol), data, volatilityTTL).Err(); err != nil {
		return fmt.Errorf("redis: set volatility %s: %w", snap.Symbol, err)
	}
	return nil
}

// Get returns the cached snapshot, or ErrNotFound when missing or expired.
func (vc *VolatilityCache) Get(ctx context.Context, symbol string) (domain.VolatilitySnapshot, error) {
	data, err := vc.rdb.Get(ctx, volKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.VolatilitySnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.VolatilitySnapshot{}, fmt.Errorf("redis: get volatility %s: %w", symbol, err)
	}
	var rec volRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.VolatilitySnapshot{}, fmt.Errorf("redis: decode volatility %s: %w", symbol, err)
	}
	return domain.VolatilitySnapshot{
		Symbol:     rec.Symbol,
		Annualized: rec.Annualized,
		Regime:     domain.VolRegime(rec.Regime),
		ComputedAt: rec.ComputedAt,
	}, nil
}

// Compile-time interface check.
var _ domain.VolatilityCache = (*VolatilityCache)(nil)
