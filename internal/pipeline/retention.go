// Package pipeline holds the background data-maintenance jobs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Retention ages data out of the primary store: trades and risk-audit rows
// are exported to cold storage first and pruned only after the upload
// succeeded; candles are pruned directly since the exchange remains the
// source of truth for historical bars.
type Retention struct {
	archiver        domain.Archiver
	trades          domain.TradeStore
	audit           domain.AuditStore
	candles         domain.CandleStore
	tradeRetention  time.Duration
	candleRetention time.Duration
	logger          *slog.Logger
}

// NewRetention creates the retention job.
func NewRetention(
	archiver domain.Archiver,
	trades domain.TradeStore,
	audit domain.AuditStore,
	candles domain.CandleStore,
	tradeRetention, candleRetention time.Duration,
	logger *slog.Logger,
) *Retention {
	return &Retention{
		archiver:        archiver,
		trades:          trades,
		audit:           audit,
		candles:         candles,
		tradeRetention:  tradeRetention,
		candleRetention: candleRetention,
		logger:          logger.With(slog.String("component", "retention")),
	}
}

// Run executes one retention pass.
func (r *Retention) Run(ctx context.Context) error {
	now := time.Now().UTC()

	if r.tradeRetention > 0 {
		cutoff := now.Add(-r.tradeRetention)
		if err := r.archiveAndPrune(ctx, cutoff); err != nil {
			return err
		}
	}

	if r.candleRetention > 0 {
		cutoff := now.Add(-r.candleRetention)
		pruned, err := r.candles.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune candles: %w", err)
		}
		if pruned > 0 {
			r.logger.Info("candles pruned", slog.Int64("count", pruned))
		}
	}
	return nil
}

func (r *Retention) archiveAndPrune(ctx context.Context, cutoff time.Time) error {
	archived, err := r.archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive trades: %w", err)
	}
	if archived > 0 {
		pruned, err := r.trades.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune trades: %w", err)
		}
		r.logger.Info("trades aged out",
			slog.Int64("archived", archived), slog.Int64("pruned", pruned))
	}

	archived, err = r.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive audit: %w", err)
	}
	if archived > 0 {
		pruned, err := r.audit.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune audit: %w", err)
		}
		r.logger.Info("audit entries aged out",
			slog.Int64("archived", archived), slog.Int64("pruned", pruned))
	}
	return nil
}
