package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// KlineSource fetches closed bars from the exchange. A zero end means the
// most recent bars.
type KlineSource interface {
	Klines(ctx context.Context, symbol string, interval domain.Interval, limit int, end time.Time) ([]domain.Candle, error)
}

// Backfiller keeps the candle store populated: a deep seed on the first pass
// per symbol, then small incremental top-ups. Upserts make overlapping
// fetches harmless.
type Backfiller struct {
	source   KlineSource
	store    domain.CandleStore
	symbols  []string
	interval domain.Interval
	// SeedDepth bars on the first pass, IncrementDepth after.
	seedDepth      int
	incrementDepth int
	seeded         map[string]bool
	logger         *slog.Logger
}

func NewBackfiller(source KlineSource, store domain.CandleStore, symbols []string, interval domain.Interval, seedDepth, incrementDepth int, logger *slog.Logger) *Backfiller {
	return &Backfiller{
		source:         source,
		store:          store,
		symbols:        symbols,
		interval:       interval,
		seedDepth:      seedDepth,
		incrementDepth: incrementDepth,
		seeded:         make(map[string]bool),
		logger:         logger.With(slog.String("component", "backfill")),
	}
}

// Run refreshes every symbol once. One symbol failing does not stop the
// others; the last error is returned for job accounting. A failed seed is
// retried in full on the next pass.
func (b *Backfiller) Run(ctx context.Context) error {
	var lastErr error
	for _, symbol := range b.symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := b.refreshSymbol(ctx, symbol); err != nil {
			b.logger.Warn("backfill failed",
				slog.String("symbol", symbol), slog.String("error", err.Error()))
			lastErr = err
		}
	}
	return lastErr
}

func (b *Backfiller) refreshSymbol(ctx context.Context, symbol string) error {
	if !b.seeded[symbol] {
		return b.seedSymbol(ctx, symbol)
	}
	candles, err := b.source.Klines(ctx, symbol, b.interval, b.incrementDepth, time.Time{})
	if err != nil {
		return fmt.Errorf("feed: backfill %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("feed: backfill %s: empty kline response", symbol)
	}
	if err := b.store.UpsertBatch(ctx, candles); err != nil {
		return fmt.Errorf("feed: backfill %s: store: %w", symbol, err)
	}
	return nil
}

// seedSymbol pages backwards from the newest bar until seedDepth bars are
// stored or the symbol's listing history runs out. One response carries at
// most maxKlinesPerRequest bars, far fewer than a useful seed depth.
func (b *Backfiller) seedSymbol(ctx context.Context, symbol string) error {
	var (
		total int
		end   time.Time
	)
	for remaining := b.seedDepth; remaining > 0; {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		limit := remaining
		if limit > maxKlinesPerRequest {
			limit = maxKlinesPerRequest
		}
		candles, err := b.source.Klines(ctx, symbol, b.interval, limit, end)
		if err != nil {
			return fmt.Errorf("feed: seed %s: %w", symbol, err)
		}
		if len(candles) == 0 {
			break
		}
		if err := b.store.UpsertBatch(ctx, candles); err != nil {
			return fmt.Errorf("feed: seed %s: store: %w", symbol, err)
		}
		total += len(candles)
		remaining -= len(candles)
		end = candles[0].Timestamp.Add(-time.Millisecond)
		if len(candles) < limit {
			// Listing start reached.
			break
		}
	}
	if total == 0 {
		return fmt.Errorf("feed: seed %s: empty kline response", symbol)
	}
	b.seeded[symbol] = true
	b.logger.Info("seeded candle history",
		slog.String("symbol", symbol), slog.Int("bars", total))
	return nil
}
