package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/indicator"
)

// Params tunes the EWMA variance model.
type Params struct {
	// Lambda is the EWMA decay factor applied to squared log returns.
	Lambda float64
	// Window is how many hourly bars feed one estimate.
	Window int
	// MinBars is the minimum usable bar count; below it no snapshot is
	// produced.
	MinBars int
	// LowThreshold and HighThreshold split annualized volatility into the
	// low / normal / high bands.
	LowThreshold  float64
	HighThreshold float64
}

// DefaultParams uses the RiskMetrics decay with crypto-calibrated bands.
func DefaultParams() Params {
	return Params{
		Lambda:        0.94,
		Window:        168,
		MinBars:       48,
		LowThreshold:  0.30,
		HighThreshold: 0.80,
	}
}

// hoursPerYear annualizes an hourly return variance.
const hoursPerYear = 24 * 365

// Estimator computes exponentially weighted volatility from hourly closes.
type Estimator struct {
	params Params
}

func NewEstimator(params Params) *Estimator {
	return &Estimator{params: params}
}

// Estimate returns the annualized EWMA volatility and its band for one
// symbol's hourly bars (oldest first). Returns ErrInsufficientData when too
// few bars are usable.
func (e *Estimator) Estimate(symbol string, hourly []domain.Candle) (domain.VolatilitySnapshot, error) {
	if len(hourly) > e.params.Window {
		hourly = hourly[len(hourly)-e.params.Window:]
	}
	returns := logReturns(hourly)
	if len(returns)+1 < e.params.MinBars {
		return domain.VolatilitySnapshot{}, fmt.Errorf(
			"analytics: %s: %d usable bars, need %d: %w",
			symbol, len(returns)+1, e.params.MinBars, domain.ErrInsufficientData)
	}

	// Seed with the sample variance of the first few returns, then decay.
	seedN := min(len(returns), 10)
	variance := sampleVariance(returns[:seedN])
	for _, r := range returns[seedN:] {
		variance = e.params.Lambda*variance + (1-e.params.Lambda)*r*r
	}

	annualized := math.Sqrt(variance * hoursPerYear)
	return domain.VolatilitySnapshot{
		Symbol:     symbol,
		Annualized: annualized,
		Regime:     e.band(annualized),
		ComputedAt: time.Now().UTC(),
	}, nil
}

func (e *Estimator) band(annualized float64) domain.VolRegime {
	switch {
	case annualized >= e.params.HighThreshold:
		return domain.VolRegimeHigh
	case annualized < e.params.LowThreshold:
		return domain.VolRegimeLow
	default:
		return domain.VolRegimeNormal
	}
}

// logReturns drops bars with non-positive closes rather than poisoning the
// series with NaNs.
func logReturns(candles []domain.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	prev := math.NaN()
	for _, c := range candles {
		if c.Close <= 0 {
			continue
		}
		if !math.IsNaN(prev) {
			out = append(out, math.Log(c.Close/prev))
		}
		prev = c.Close
	}
	return out
}

func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}

// Service periodically re-estimates volatility for every tracked symbol and
// publishes the result to the volatility state cache read by the risk chain.
type Service struct {
	estimator   *Estimator
	candles     domain.CandleStore
	cache       domain.VolatilityCache
	symbols     []string
	candleLimit int
	logger      *slog.Logger
}

func NewService(estimator *Estimator, candles domain.CandleStore, cache domain.VolatilityCache, symbols []string, candleLimit int, logger *slog.Logger) *Service {
	return &Service{
		estimator:   estimator,
		candles:     candles,
		cache:       cache,
		symbols:     symbols,
		candleLimit: candleLimit,
		logger:      logger.With(slog.String("component", "volatility")),
	}
}

// Refresh re-estimates every symbol. A failure for one symbol is logged and
// the rest still refresh; Refresh reports the last error for job accounting.
func (s *Service) Refresh(ctx context.Context) error {
	var lastErr error
	for _, symbol := range s.symbols {
		if err := s.refreshSymbol(ctx, symbol); err != nil {
			s.logger.Warn("volatility refresh failed",
				slog.String("symbol", symbol), slog.String("error", err.Error()))
			lastErr = err
		}
	}
	return lastErr
}

func (s *Service) refreshSymbol(ctx context.Context, symbol string) error {
	minute, err := s.candles.ListRecent(ctx, symbol, domain.Interval1m, s.candleLimit)
	if err != nil {
		return fmt.Errorf("analytics: load candles: %w", err)
	}
	snap, err := s.estimator.Estimate(symbol, indicator.ResampleHourly(minute))
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		return fmt.Errorf("analytics: cache volatility: %w", err)
	}
	s.logger.Info("volatility updated",
		slog.String("symbol", symbol),
		slog.Float64("annualized", snap.Annualized),
		slog.String("band", string(snap.Regime)))
	return nil
}
