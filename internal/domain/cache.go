package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest observed price per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// RegimeCache stores classified regimes with a TTL and an audit history.
type RegimeCache interface {
	Set(ctx context.Context, snap RegimeSnapshot) error
	Get(ctx context.Context, symbol string) (RegimeSnapshot, error)
	AppendHistory(ctx context.Context, snap RegimeSnapshot) error
}

// VolatilityCache stores the volatility state read by the risk chain.
type VolatilityCache interface {
	Set(ctx context.Context, snap VolatilitySnapshot) error
	Get(ctx context.Context, symbol string) (VolatilitySnapshot, error)
}

// StatusCache holds the short-TTL per-symbol operator readout.
type StatusCache interface {
	SetSymbol(ctx context.Context, status SymbolStatus) error
	GetSymbol(ctx context.Context, symbol string) (SymbolStatus, error)
	ListSymbols(ctx context.Context, symbols []string) ([]SymbolStatus, error)
}

// EquityCache stores the frozen daily reference-equity snapshot.
type EquityCache interface {
	Set(ctx context.Context, ref ReferenceEquity) error
	Get(ctx context.Context, day time.Time) (ReferenceEquity, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
