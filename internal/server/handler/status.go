package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// StatusStore defines what the status handler needs from persistence.
type StatusStore interface {
	Count(ctx context.Context) (int, error)
}

// StatusHandler serves the engine status and per-symbol decision readouts.
type StatusHandler struct {
	mode      string
	strategy  string
	symbols   []string
	startedAt time.Time
	statuses  domain.StatusCache
	positions StatusStore
	account   domain.AccountStore
	states    domain.RiskStateStore
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler for the given run mode and symbol
// universe.
func NewStatusHandler(
	mode string,
	strategy string,
	symbols []string,
	statuses domain.StatusCache,
	positions StatusStore,
	account domain.AccountStore,
	states domain.RiskStateStore,
	logger *slog.Logger,
) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		strategy:  strategy,
		symbols:   symbols,
		startedAt: time.Now().UTC(),
		statuses:  statuses,
		positions: positions,
		account:   account,
		states:    states,
		logger:    logger,
	}
}

// engineStatusResponse is the JSON shape of the engine status readout.
type engineStatusResponse struct {
	Mode          string    `json:"mode"`
	Strategy      string    `json:"strategy"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	OpenPositions int       `json:"open_positions"`
	Balance       float64   `json:"balance"`
	Halted        bool      `json:"halted"`
	InCooldown    bool      `json:"in_cooldown"`
	LastCycleAt   time.Time `json:"last_cycle_at"`
}

// symbolStatusResponse is the JSON shape of one symbol's last decision.
type symbolStatusResponse struct {
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Regime    string    `json:"regime"`
	Price     float64   `json:"price"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetStatus responds with the engine's operational summary.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logHandler(h.logger, "status")

	open, err := h.positions.Count(ctx)
	if err != nil {
		log.ErrorContext(ctx, "count positions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read positions")
		return
	}

	acct, err := h.account.Get(ctx)
	if err != nil {
		log.ErrorContext(ctx, "read account failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read account")
		return
	}

	now := time.Now().UTC()
	state, err := h.states.GetOrCreate(ctx, now)
	if err != nil {
		log.ErrorContext(ctx, "read risk state failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read risk state")
		return
	}

	var lastCycle time.Time
	if statuses, err := h.statuses.ListSymbols(ctx, h.symbols); err == nil {
		for _, st := range statuses {
			if st.UpdatedAt.After(lastCycle) {
				lastCycle = st.UpdatedAt
			}
		}
	}

	writeJSON(w, http.StatusOK, engineStatusResponse{
		Mode:          h.mode,
		Strategy:      h.strategy,
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		OpenPositions: open,
		Balance:       acct.Balance,
		Halted:        state.Halted,
		InCooldown:    state.InCooldown(now),
		LastCycleAt:   lastCycle,
	})
}

// ListSymbols returns the latest per-symbol decision readouts. Symbols the
// loop has not yet evaluated are omitted.
// GET /api/symbols
func (h *StatusHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.statuses.ListSymbols(r.Context(), h.symbols)
	if err != nil {
		logHandler(h.logger, "status").ErrorContext(r.Context(), "list symbol statuses failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list symbol statuses")
		return
	}

	out := make([]symbolStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, symbolStatusResponse{
			Symbol:    st.Symbol,
			Action:    string(st.Action),
			Regime:    string(st.Regime),
			Price:     st.Price,
			Reason:    st.Reason,
			UpdatedAt: st.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"symbols": out})
}
