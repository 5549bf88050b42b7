package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// ReportSink receives the rendered daily summary.
type ReportSink interface {
	Notify(event string, payload map[string]any)
}

// Reporter assembles the end-of-day summary from the persisted state and
// pushes it through the alert pipeline. Scheduled once per UTC day.
type Reporter struct {
	account   domain.AccountStore
	positions domain.PositionStore
	states    domain.RiskStateStore
	sink      ReportSink
	logger    *slog.Logger

	lastSent time.Time
}

func NewReporter(account domain.AccountStore, positions domain.PositionStore, states domain.RiskStateStore, sink ReportSink, logger *slog.Logger) *Reporter {
	return &Reporter{
		account:   account,
		positions: positions,
		states:    states,
		sink:      sink,
		logger:    logger.With(slog.String("component", "reporter")),
	}
}

// Run emits a report for the current UTC day at most once. Safe to schedule
// on a short interval; repeat calls within the same day are no-ops.
func (r *Reporter) Run(ctx context.Context) error {
	now := time.Now().UTC()
	day := now.Truncate(24 * time.Hour)
	if r.lastSent.Equal(day) {
		return nil
	}
	report, err := r.Build(ctx, now)
	if err != nil {
		return err
	}
	r.sink.Notify("daily_report", map[string]any{
		"date":           report.Date.Format("2006-01-02"),
		"realized_pnl":   fmt.Sprintf("%.2f", report.RealizedPnL),
		"buys":           report.BuyCount,
		"sells":          report.SellCount,
		"open_positions": report.OpenPositions,
		"balance":        fmt.Sprintf("%.2f", report.Balance),
		"halted":         report.Halted,
		"in_cooldown":    report.InCooldown,
	})
	r.lastSent = day
	r.logger.Info("daily report sent", slog.String("date", report.Date.Format("2006-01-02")))
	return nil
}

// Build assembles the report for the UTC day containing now.
func (r *Reporter) Build(ctx context.Context, now time.Time) (domain.DailyReport, error) {
	day := now.UTC().Truncate(24 * time.Hour)

	state, err := r.states.GetOrCreate(ctx, day)
	if err != nil {
		return domain.DailyReport{}, fmt.Errorf("notify: load risk state: %w", err)
	}
	account, err := r.account.Get(ctx)
	if err != nil {
		return domain.DailyReport{}, fmt.Errorf("notify: load account: %w", err)
	}
	open, err := r.positions.ListOpen(ctx)
	if err != nil {
		return domain.DailyReport{}, fmt.Errorf("notify: load positions: %w", err)
	}

	return domain.DailyReport{
		Date:          day,
		RealizedPnL:   state.RealizedPnL,
		BuyCount:      state.BuyCount,
		SellCount:     state.SellCount,
		OpenPositions: len(open),
		Balance:       account.Balance,
		Halted:        state.Halted,
		InCooldown:    state.InCooldown(now),
	}, nil
}
