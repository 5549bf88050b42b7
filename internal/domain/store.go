package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CandleStore reads and writes OHLCV bars.
type CandleStore interface {
	UpsertBatch(ctx context.Context, candles []Candle) error
	// ListRecent returns up to limit bars for symbol+interval ordered
	// oldest→newest, ending at the most recent stored bar.
	ListRecent(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error)
	LatestClose(ctx context.Context, symbol string, interval Interval) (float64, time.Time, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PositionStore reads positions outside a ledger transaction.
type PositionStore interface {
	Get(ctx context.Context, symbol string) (Position, error)
	ListOpen(ctx context.Context) ([]Position, error)
	Count(ctx context.Context) (int, error)
	// SetHighWaterMark raises the mark; it never lowers an existing one.
	SetHighWaterMark(ctx context.Context, symbol string, mark float64) error
}

// AccountStore reads the shared cash account.
type AccountStore interface {
	Get(ctx context.Context) (Account, error)
}

// RiskStateStore persists the per-day risk aggregate.
type RiskStateStore interface {
	// GetOrCreate returns the row for the given UTC day, creating a zeroed
	// row if none exists yet.
	GetOrCreate(ctx context.Context, day time.Time) (DailyRiskState, error)
	// Mutate applies fn to the day's row under an exclusive lock, creating
	// a zeroed row if none exists, and returns the stored result.
	// Concurrent mutations of the same day serialize; none is lost.
	Mutate(ctx context.Context, day time.Time, fn func(*DailyRiskState)) (DailyRiskState, error)
}

// TradeStore persists the append-only fill history.
type TradeStore interface {
	List(ctx context.Context, symbol string, opts ListOpts) ([]Trade, error)
	ListBySide(ctx context.Context, symbol string, side OrderSide, opts ListOpts) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	SumRealizedPnL(ctx context.Context, since time.Time) (float64, error)
}

// AuditStore persists the append-only risk violation log.
type AuditStore interface {
	Log(ctx context.Context, entry RiskAudit) error
	List(ctx context.Context, opts ListOpts) ([]RiskAudit, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]RiskAudit, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// LedgerTx is one unit of work over the shared account and a symbol's
// position. Row locks taken by the ForUpdate methods are held until Commit or
// Rollback; Rollback after Commit is a no-op.
type LedgerTx interface {
	AccountForUpdate(ctx context.Context) (Account, error)
	PositionForUpdate(ctx context.Context, symbol string) (Position, error)
	UpsertPosition(ctx context.Context, pos Position) error
	DeletePosition(ctx context.Context, symbol string) error
	UpdateBalance(ctx context.Context, balance float64) error
	InsertTrade(ctx context.Context, trade Trade) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager begins ledger transactions.
type TxManager interface {
	Begin(ctx context.Context) (LedgerTx, error)
}
