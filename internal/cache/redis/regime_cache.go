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

// regimeTTL is generous relative to the refresh cadence: a classifier that
// stops refreshing eventually degrades readers to UNKNOWN rather than
// serving a regime from hours ago.
const regimeTTL = 2 * time.Hour

// RegimeCache implements domain.RegimeCache. The current snapshot lives at
// "regime:{symbol}" as JSON with a TTL; every snapshot is also appended to
// the capped stream "regime:history:{symbol}" as an audit trail of regime
// transitions.
type RegimeCache struct {
	rdb *redis.Client
}

// NewRegimeCache creates a RegimeCache backed by the given Client.
func NewRegimeCache(c *Client) *RegimeCache {
	return &RegimeCache{rdb: c.Underlying()}
}

func regimeKey(symbol string) string {
	return "regime:" + symbol
}

func regimeHistoryKey(symbol string) string {
	return "regime:history:" + symbol
}

// regimeRecord is the JSON shape for a cached snapshot.
type regimeRecord struct {
	Symbol     string    `json:"symbol"`
	Regime     string    `json:"regime"`
	MAFast     float64   `json:"ma_fast"`
	MASlow     float64   `json:"ma_slow"`
	SpreadPct  float64   `json:"spread_pct"`
	ComputedAt time.Time `json:"computed_at"`
}

func toRecord(snap domain.RegimeSnapshot) regimeRecord {
	return regimeRecord{
		Symbol:     snap.Symbol,
		Regime:     string(snap.Regime),
		MAFast:     snap.MAFast,
		MASlow:     snap.MASlow,
		SpreadPct:  snap.SpreadPct,
		ComputedAt: snap.ComputedAt,
	}
}

func fromRecord(rec regimeRecord) domain.RegimeSnapshot {
	return domain.RegimeSnapshot{
		Symbol:     rec.Symbol,
		Regime:     domain.Regime(rec.Regime),
		MAFast:     rec.MAFast,
		MASlow:     rec.MASlow,
		SpreadPct:  rec.SpreadPct,
		ComputedAt: rec.ComputedAt,
	}
}

// Set stores the current regime snapshot with the cache TTL.
func (rc *RegimeCache) Set(ctx context.Context, snap domain.RegimeSnapshot) error {
	data, err := json.Marshal(toRecord(snap))
	if err != nil {
		return fmt.Errorf("redis: encode regime %s: %w", snap.Symbol, err)
	}
	if err := rc.rdb.Set(ctx, regimeKey(snap.Symbol), data, regimeTTL).Err(); err != nil {
		return fmt.Errorf("redis: set regime %s: %w", snap.Symbol, err)
	}
	return nil
}

// Get returns the cached snapshot, or ErrNotFound when missing or expired.
func (rc *RegimeCache) Get(ctx context.Context, symbol string) (domain.RegimeSnapshot, error) {
	data, err := rc.rdb.Get(ctx, regimeKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RegimeSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RegimeSnapshot{}, fmt.Errorf("redis: get regime %s: %w", symbol, err)
	}
	var rec regimeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.RegimeSnapshot{}, fmt.Errorf("redis: decode regime %s: %w", symbol, err)
	}
	return fromRecord(rec), nil
}

// AppendHistory appends the snapshot to the capped per-symbol stream.
func (rc *RegimeCache) AppendHistory(ctx context.Context, snap domain.RegimeSnapshot) error {
	data, err := json.Marshal(toRecord(snap))
	if err != nil {
		return fmt.Errorf("redis: encode regime history %s: %w", snap.Symbol, err)
	}
	args := &redis.XAddArgs{
		Stream: regimeHistoryKey(snap.Symbol),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": data},
	}
	if err := rc.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: append regime history %s: %w", snap.Symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.RegimeCache = (*RegimeCache)(nil)
