// Package risk implements the pre-trade validation chain, the daily risk
// state tracker, and the frozen reference-equity snapshot.
package risk

import (
	"context"
	"log/slog"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// PriceResolver resolves a usable price per symbol: live cache first, then
// the latest stored candle close, then the position's own average price.
// It never reports a missing price for a held position.
type PriceResolver struct {
	prices  domain.PriceCache
	candles domain.CandleStore
	logger  *slog.Logger
}

// NewPriceResolver builds a PriceResolver.
func NewPriceResolver(prices domain.PriceCache, candles domain.CandleStore, logger *slog.Logger) *PriceResolver {
	return &PriceResolver{
		prices:  prices,
		candles: candles,
		logger:  logger.With(slog.String("component", "price_resolver")),
	}
}

// Resolve returns the best-known price for the symbol, falling back to the
// given position average. Returns 0 only when every source is empty and the
// fallback is 0.
func (r *PriceResolver) Resolve(ctx context.Context, symbol string, fallbackAvg float64) float64 {
	if price, _, err := r.prices.GetPrice(ctx, symbol); err == nil && price > 0 {
		return price
	}
	if close, _, err := r.candles.LatestClose(ctx, symbol, domain.Interval1m); err == nil && close > 0 {
		return close
	}
	r.logger.Debug("no live price, using position average",
		slog.String("symbol", symbol), slog.Float64("avg", fallbackAvg))
	return fallbackAvg
}

// Exposure sums the market value of the given open positions.
func (r *PriceResolver) Exposure(ctx context.Context, positions []domain.Position) float64 {
	var total float64
	for _, pos := range positions {
		price := r.Resolve(ctx, pos.Symbol, pos.AvgEntryPrice)
		total += pos.MarketValue(price)
	}
	return total
}
