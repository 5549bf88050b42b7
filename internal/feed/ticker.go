package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// TickerFeed keeps the price cache fresh from the exchange WebSocket stream.
// It reconnects with a fixed backoff on disconnect and optionally mirrors
// each observation onto the signal bus for dashboard consumers.
type TickerFeed struct {
	wsURL     string
	symbols   []string
	prices    domain.PriceCache
	bus       domain.SignalBus
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewTickerFeed creates a feed for the given symbols. bus may be nil.
func NewTickerFeed(wsURL string, symbols []string, prices domain.PriceCache, bus domain.SignalBus, logger *slog.Logger) *TickerFeed {
	return &TickerFeed{
		wsURL:   wsURL,
		symbols: symbols,
		prices:  prices,
		bus:     bus,
		logger:  logger.With(slog.String("component", "ticker_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects, subscribes, and runs until ctx is cancelled. Reconnects with
// backoff on disconnect.
func (f *TickerFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		if err := f.runConnection(ctx); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else {
			f.logger.Warn("ticker stream disconnected, reconnecting",
				slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *TickerFeed) runConnection(ctx context.Context) error {
	client := NewStreamClient(f.wsURL)
	defer client.Close()

	client.OnTicker(func(t domain.Ticker) {
		f.handleTicker(context.Background(), t)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.symbols); err != nil {
		return err
	}
	f.logger.Info("ticker stream subscribed", slog.Int("symbols", len(f.symbols)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.done:
		return errors.New("stream closed by peer")
	case <-f.done:
		return nil
	}
}

func (f *TickerFeed) handleTicker(ctx context.Context, t domain.Ticker) {
	if err := f.prices.SetPrice(ctx, t.Symbol, t.Price, t.Timestamp); err != nil {
		f.logger.Warn("price cache write failed",
			slog.String("symbol", t.Symbol), slog.String("error", err.Error()))
	}
	if f.bus != nil {
		payload, err := json.Marshal(t)
		if err == nil {
			if err := f.bus.Publish(ctx, "ticker", payload); err != nil {
				f.logger.Warn("ticker publish failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops the feed.
func (f *TickerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
