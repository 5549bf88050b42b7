package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// RiskHandler serves the daily risk state and the violation audit log.
type RiskHandler struct {
	states domain.RiskStateStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler over the given stores.
func NewRiskHandler(states domain.RiskStateStore, audit domain.AuditStore, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{states: states, audit: audit, logger: logger}
}

// riskStateResponse is the JSON shape of the current UTC day's risk aggregate.
type riskStateResponse struct {
	Date              string     `json:"date"`
	RealizedPnL       float64    `json:"realized_pnl"`
	BuyCount          int        `json:"buy_count"`
	SellCount         int        `json:"sell_count"`
	ConsecutiveLosses int        `json:"consecutive_losses"`
	CooldownUntil     *time.Time `json:"cooldown_until,omitempty"`
	InCooldown        bool       `json:"in_cooldown"`
	Halted            bool       `json:"halted"`
}

// auditResponse is the JSON shape of one risk rejection.
type auditResponse struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Check     string    `json:"check"`
	Reason    string    `json:"reason"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// GetRiskState returns the current UTC day's risk aggregate, creating a
// zeroed row if the day has not traded yet.
// GET /api/risk
func (h *RiskHandler) GetRiskState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	state, err := h.states.GetOrCreate(ctx, now)
	if err != nil {
		logHandler(h.logger, "risk").ErrorContext(ctx, "read risk state failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read risk state")
		return
	}

	writeJSON(w, http.StatusOK, riskStateResponse{
		Date:              state.Date.Format("2006-01-02"),
		RealizedPnL:       state.RealizedPnL,
		BuyCount:          state.BuyCount,
		SellCount:         state.SellCount,
		ConsecutiveLosses: state.ConsecutiveLosses,
		CooldownUntil:     state.CooldownUntil,
		InCooldown:        state.InCooldown(now),
		Halted:            state.Halted,
	})
}

// ListAudit returns risk rejections, newest first.
// GET /api/risk/audit?since=...&limit=50&offset=0
func (h *RiskHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.audit.List(ctx, parseListOpts(r))
	if err != nil {
		logHandler(h.logger, "risk").ErrorContext(ctx, "list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}

	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:        e.ID,
			Symbol:    e.Symbol,
			Check:     e.Check,
			Reason:    e.Reason,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"audit": out})
}
