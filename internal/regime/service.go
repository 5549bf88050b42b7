package regime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/indicator"
)

// Service refreshes regimes from stored candles and serves them through the
// cache. Classification results are also appended to a durable history for
// audit.
type Service struct {
	classifier *Classifier
	candles    domain.CandleStore
	cache      domain.RegimeCache
	// candleLimit bounds how many minute bars are loaded per refresh;
	// must cover SlowPeriod hours.
	candleLimit int
	logger      *slog.Logger
}

// NewService builds a regime Service.
func NewService(classifier *Classifier, candles domain.CandleStore, cache domain.RegimeCache, candleLimit int, logger *slog.Logger) *Service {
	return &Service{
		classifier:  classifier,
		candles:     candles,
		cache:       cache,
		candleLimit: candleLimit,
		logger:      logger.With(slog.String("component", "regime")),
	}
}

// Refresh reclassifies the symbol from stored candles and writes the result
// to the cache and the audit history.
func (s *Service) Refresh(ctx context.Context, symbol string) (domain.RegimeSnapshot, error) {
	candles, err := s.candles.ListRecent(ctx, symbol, domain.Interval1m, s.candleLimit)
	if err != nil {
		return domain.RegimeSnapshot{}, fmt.Errorf("regime: load candles for %s: %w", symbol, err)
	}

	snap := s.classifier.Classify(symbol, indicator.ResampleHourly(candles))

	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.Warn("regime cache write failed",
			slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
	if err := s.cache.AppendHistory(ctx, snap); err != nil {
		s.logger.Warn("regime history append failed",
			slog.String("symbol", symbol), slog.String("error", err.Error()))
	}

	s.logger.Info("regime refreshed",
		slog.String("symbol", symbol),
		slog.String("regime", string(snap.Regime)),
		slog.Float64("spread_pct", snap.SpreadPct))
	return snap, nil
}

// Current returns the cached regime for the symbol, reclassifying on a cache
// miss. Classification failures degrade to UNKNOWN rather than erroring.
func (s *Service) Current(ctx context.Context, symbol string) domain.RegimeSnapshot {
	if snap, err := s.cache.Get(ctx, symbol); err == nil {
		return snap
	}
	snap, err := s.Refresh(ctx, symbol)
	if err != nil {
		s.logger.Warn("regime refresh failed, treating as UNKNOWN",
			slog.String("symbol", symbol), slog.String("error", err.Error()))
		return domain.RegimeSnapshot{Symbol: symbol, Regime: domain.RegimeUnknown}
	}
	return snap
}
