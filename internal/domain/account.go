package domain

import "time"

// Account holds the single shared cash balance. Balance never goes negative;
// the risk chain checks before any debit and the ledger re-verifies under lock.
type Account struct {
	ID        string
	Balance   float64
	UpdatedAt time.Time
}

// DailyRiskState is the per-UTC-day risk aggregate, created lazily on first
// access and mutated only by the risk tracker after a fill commits.
type DailyRiskState struct {
	Date              time.Time // UTC midnight
	RealizedPnL       float64
	BuyCount          int
	SellCount         int
	ConsecutiveLosses int
	CooldownUntil     *time.Time
	Halted            bool
	UpdatedAt         time.Time
}

// InCooldown reports whether a cooldown window is active at the given time.
func (s DailyRiskState) InCooldown(now time.Time) bool {
	return s.CooldownUntil != nil && now.Before(*s.CooldownUntil)
}

// ReferenceEquity is the once-per-day frozen account snapshot used as the
// denominator for all percentage-based sizing that day.
type ReferenceEquity struct {
	Date       time.Time // UTC midnight
	Equity     float64
	Overridden bool
	ComputedAt time.Time
}
