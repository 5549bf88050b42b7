package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// CandleHandler serves stored OHLCV history.
type CandleHandler struct {
	candles domain.CandleStore
	logger  *slog.Logger
}

// NewCandleHandler creates a CandleHandler over the given store.
func NewCandleHandler(candles domain.CandleStore, logger *slog.Logger) *CandleHandler {
	return &CandleHandler{candles: candles, logger: logger}
}

// candleResponse is the JSON shape of one OHLCV bar.
type candleResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ListCandles returns up to limit stored bars, oldest first.
// GET /api/candles?symbol=BTCUSDT&interval=1m&limit=500
func (h *CandleHandler) ListCandles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	symbol := strings.ToUpper(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter required")
		return
	}

	interval := domain.Interval(q.Get("interval"))
	switch interval {
	case "":
		interval = domain.Interval1m
	case domain.Interval1m, domain.Interval5m, domain.Interval1h, domain.Interval1d:
	default:
		writeError(w, http.StatusBadRequest, "unsupported interval")
		return
	}

	limit := 500
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 2000 {
		limit = 2000
	}

	candles, err := h.candles.ListRecent(ctx, symbol, interval, limit)
	if err != nil {
		logHandler(h.logger, "candles").ErrorContext(ctx, "list candles failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list candles")
		return
	}

	out := make([]candleResponse, 0, len(candles))
	for _, c := range candles {
		out = append(out, candleResponse{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"interval": string(interval),
		"candles":  out,
	})
}
