package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// EquityOverride pins reference equity to a fixed value until it expires.
// An override with a zero expiry is invalid and ignored; a stale override
// never silently freezes sizing.
type EquityOverride struct {
	Equity    float64
	ExpiresAt time.Time
}

// EquityService computes and freezes the daily reference-equity snapshot:
// cash plus exposure at the first computation of each UTC day. All sizing
// math for the rest of the day reads the frozen value.
type EquityService struct {
	account  domain.AccountStore
	position domain.PositionStore
	resolver *PriceResolver
	cache    domain.EquityCache
	override *EquityOverride
	logger   *slog.Logger

	mu     sync.Mutex
	frozen domain.ReferenceEquity
}

// NewEquityService builds an EquityService. override may be nil.
func NewEquityService(account domain.AccountStore, position domain.PositionStore, resolver *PriceResolver, cache domain.EquityCache, override *EquityOverride, logger *slog.Logger) *EquityService {
	return &EquityService{
		account:  account,
		position: position,
		resolver: resolver,
		cache:    cache,
		override: override,
		logger:   logger.With(slog.String("component", "equity")),
	}
}

// Reference returns the frozen reference equity for the given time's UTC day,
// computing and caching it on first access.
func (s *EquityService) Reference(ctx context.Context, now time.Time) (float64, error) {
	day := now.UTC().Truncate(24 * time.Hour)

	if s.override != nil {
		if s.override.ExpiresAt.IsZero() || !now.Before(s.override.ExpiresAt) {
			s.logger.Warn("equity override expired or missing expiry, ignoring",
				slog.Time("expires_at", s.override.ExpiresAt))
		} else {
			return s.override.Equity, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen.Date.Equal(day) && s.frozen.Equity > 0 {
		return s.frozen.Equity, nil
	}

	if ref, err := s.cache.Get(ctx, day); err == nil && ref.Equity > 0 {
		s.frozen = ref
		return ref.Equity, nil
	}

	account, err := s.account.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("risk: load account: %w", err)
	}
	positions, err := s.position.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("risk: load positions: %w", err)
	}
	exposure := s.resolver.Exposure(ctx, positions)

	ref := domain.ReferenceEquity{
		Date:       day,
		Equity:     account.Balance + exposure,
		ComputedAt: now.UTC(),
	}
	s.frozen = ref
	if err := s.cache.Set(ctx, ref); err != nil {
		s.logger.Warn("equity cache write failed", slog.String("error", err.Error()))
	}
	s.logger.Info("reference equity frozen",
		slog.Time("day", day), slog.Float64("equity", ref.Equity))
	return ref.Equity, nil
}
