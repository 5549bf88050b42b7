package domain

import "time"

// Regime classifies the prevailing market trend for a symbol.
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeBear     Regime = "BEAR"
	RegimeSideways Regime = "SIDEWAYS"
	RegimeUnknown  Regime = "UNKNOWN"
)

// RegimeSnapshot is a classified regime with the inputs that produced it.
type RegimeSnapshot struct {
	Symbol     string
	Regime     Regime
	MAFast     float64 // 50-period hourly MA
	MASlow     float64 // 200-period hourly MA
	SpreadPct  float64 // (fast-slow)/slow * 100
	ComputedAt time.Time
}

// VolRegime classifies recent volatility relative to configured bands.
type VolRegime string

const (
	VolRegimeLow    VolRegime = "low"
	VolRegimeNormal VolRegime = "normal"
	VolRegimeHigh   VolRegime = "high"
)

// VolatilitySnapshot carries a forecast annualized volatility for a symbol.
type VolatilitySnapshot struct {
	Symbol     string
	Annualized float64
	Regime     VolRegime
	ComputedAt time.Time
}
