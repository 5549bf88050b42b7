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

// statusTTL keeps the operator readout honest: a stalled decision loop shows
// up as missing statuses instead of frozen ones.
const statusTTL = 5 * time.Minute

// StatusCache implements domain.StatusCache at "status:{symbol}".
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache creates a StatusCache backed by the given Client.
func NewStatusCache(c *Client) *StatusCache {
	return &StatusCache{rdb: c.Underlying()}
}

func statusKey(symbol string) string {
	return "status:" + symbol
}

type statusRecord struct {
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Regime    string    `json:"regime"`
	Price     float64   `json:"price"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}

func decodeStatus(data []byte) (domain.SymbolStatus, error) {
	var rec statusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.SymbolStatus{}, err
	}
	return domain.SymbolStatus{
		Symbol:    rec.Symbol,
		Action:    domain.Action(rec.Action),
		Regime:    domain.Regime(rec.Regime),
		Price:     rec.Price,
		Reason:    rec.Reason,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// SetSymbol stores one symbol's readout with the short TTL.
func (sc *StatusCache) SetSymbol(ctx context.Context, status domain.SymbolStatus) error {
	data, err := json.Marshal(statusRecord{
		Symbol:    status.Symbol,
		Action:    string(status.Action),
		Regime:    string(status.Regime),
		Price:     status.Price,
		Reason:    status.Reason,
		UpdatedAt: status.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: encode status %s: %w", status.Symbol, err)
	}
	if err := sc.rdb.Set(ctx, statusKey(status.Symbol), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("redis: set status %s: %w", status.Symbol, err)
	}
	return nil
}

// GetSymbol returns one symbol's readout, or ErrNotFound when missing.
func (sc *StatusCache) GetSymbol(ctx context.Context, symbol string) (domain.SymbolStatus, error) {
	data, err := sc.rdb.Get(ctx, statusKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SymbolStatus{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SymbolStatus{}, fmt.Errorf("redis: get status %s: %w", symbol, err)
	}
	status, err := decodeStatus(data)
	if err != nil {
		return domain.SymbolStatus{}, fmt.Errorf("redis: decode status %s: %w", symbol, err)
	}
	return status, nil
}

// ListSymbols returns the readouts that exist for the given symbols, using a
// pipeline. Missing symbols are omitted.
func (sc *StatusCache) ListSymbols(ctx context.Context, symbols []string) ([]domain.SymbolStatus, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	pipe := sc.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(symbols))
	for i, s := range symbols {
		cmds[i] = pipe.Get(ctx, statusKey(s))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: list statuses: %w", err)
	}

	statuses := make([]domain.SymbolStatus, 0, len(symbols))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		status, err := decodeStatus(data)
		if err != nil {
			return nil, fmt.Errorf("redis: decode status %s: %w", symbols[i], err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Compile-time interface check.
var _ domain.StatusCache = (*StatusCache)(nil)
