package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// TradeHandler serves the fill history.
type TradeHandler struct {
	trades domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler over the given store.
func NewTradeHandler(trades domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// tradeResponse is the JSON shape of one executed fill.
type tradeResponse struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	Amount        float64   `json:"amount"`
	Strategy      string    `json:"strategy"`
	Regime        string    `json:"regime"`
	ExitReason    string    `json:"exit_reason,omitempty"`
	EntryAvgPrice float64   `json:"entry_avg_price,omitempty"`
	RealizedPnL   float64   `json:"realized_pnl"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// ListTrades returns executed fills for a symbol, newest first.
// GET /api/trades?symbol=BTCUSDT&side=SELL&since=...&until=...&limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	symbol := strings.ToUpper(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter required")
		return
	}

	opts := parseListOpts(r)

	var (
		trades []domain.Trade
		err    error
	)
	switch side := strings.ToUpper(q.Get("side")); side {
	case "":
		trades, err = h.trades.List(ctx, symbol, opts)
	case string(domain.OrderSideBuy), string(domain.OrderSideSell):
		trades, err = h.trades.ListBySide(ctx, symbol, domain.OrderSide(side), opts)
	default:
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}
	if err != nil {
		logHandler(h.logger, "trades").ErrorContext(ctx, "list trades failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeResponse{
			ID:            t.ID,
			Symbol:        t.Symbol,
			Side:          string(t.Side),
			Price:         t.Price,
			Quantity:      t.Quantity,
			Amount:        t.Amount,
			Strategy:      t.Strategy,
			Regime:        string(t.Regime),
			ExitReason:    string(t.ExitReason),
			EntryAvgPrice: t.EntryAvgPrice,
			RealizedPnL:   t.RealizedPnL,
			ExecutedAt:    t.ExecutedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}
