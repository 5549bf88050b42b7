package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// PositionReader defines what the position handler needs from persistence.
type PositionReader interface {
	ListOpen(ctx context.Context) ([]domain.Position, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionReader
	prices    domain.PriceCache
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given store and
// price cache.
func NewPositionHandler(positions PositionReader, prices domain.PriceCache, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		prices:    prices,
		logger:    logger,
	}
}

// positionResponse is the JSON shape of one open position. Price-derived
// fields are zero when no fresh price is available.
type positionResponse struct {
	Symbol           string    `json:"symbol"`
	Quantity         float64   `json:"quantity"`
	AvgEntryPrice    float64   `json:"avg_entry_price"`
	EntryRegime      string    `json:"entry_regime"`
	HighWaterMark    float64   `json:"high_water_mark"`
	CurrentPrice     float64   `json:"current_price,omitempty"`
	MarketValue      float64   `json:"market_value,omitempty"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct,omitempty"`
	OpenedAt         time.Time `json:"opened_at"`
}

// ListPositions returns all open positions, marked to the latest cached price.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	positions, err := h.positions.ListOpen(ctx)
	if err != nil {
		logHandler(h.logger, "positions").ErrorContext(ctx, "list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	marks, err := h.prices.GetPrices(ctx, symbols)
	if err != nil {
		// Positions are still useful without marks.
		marks = nil
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		resp := positionResponse{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice,
			EntryRegime:   string(p.EntryRegime),
			HighWaterMark: p.HighWaterMark,
			OpenedAt:      p.OpenedAt,
		}
		if price, ok := marks[p.Symbol]; ok && price > 0 {
			resp.CurrentPrice = price
			resp.MarketValue = p.MarketValue(price)
			resp.UnrealizedPnLPct = p.UnrealizedPnLPct(price)
		}
		out = append(out, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}
