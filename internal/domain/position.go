package domain

import "time"

// Position is the single open lot chain for a symbol. One open position per
// symbol; quantity is always > 0 while the row exists. Mutated only inside a
// LedgerTx.
type Position struct {
	Symbol        string
	Quantity      float64
	AvgEntryPrice float64
	EntryRegime   Regime
	HighWaterMark float64
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// UnrealizedPnLPct returns the fractional gain/loss at the given price.
// Returns 0 for a non-positive entry price.
func (p Position) UnrealizedPnLPct(price float64) float64 {
	if p.AvgEntryPrice <= 0 {
		return 0
	}
	return (price - p.AvgEntryPrice) / p.AvgEntryPrice
}

// MarketValue returns quantity × price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// HoldingTime reports how long the position has been open as of now.
func (p Position) HoldingTime(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
