package strategy

// TrailingStop tracks a position's high-water mark against an activation
// threshold. The mark only ever rises, so once the position has gained enough
// to arm the stop it stays armed even if price later falls back below the
// activation level.
type TrailingStop struct {
	EntryPrice    float64
	HighWaterMark float64
	ActivationPct float64
	TrailingPct   float64
}

// NewTrailingStop builds a tracker for a position. The initial mark is the
// greater of the entry price and the recorded high-water mark.
func NewTrailingStop(entryPrice, highWaterMark, activationPct, trailingPct float64) *TrailingStop {
	if highWaterMark < entryPrice {
		highWaterMark = entryPrice
	}
	return &TrailingStop{
		EntryPrice:    entryPrice,
		HighWaterMark: highWaterMark,
		ActivationPct: activationPct,
		TrailingPct:   trailingPct,
	}
}

// Observe folds a new price into the mark. Returns true when the mark rose.
func (t *TrailingStop) Observe(price float64) bool {
	if price > t.HighWaterMark {
		t.HighWaterMark = price
		return true
	}
	return false
}

// Armed reports whether the stop is active. Arming is permanent: the mark is
// monotonic, so hwm ≥ entry×(1+activation) can never become false again.
func (t *TrailingStop) Armed(price float64) bool {
	if t.EntryPrice <= 0 {
		return false
	}
	if (price-t.EntryPrice)/t.EntryPrice >= t.ActivationPct {
		return true
	}
	return t.HighWaterMark >= t.EntryPrice*(1+t.ActivationPct)
}

// StopPrice returns the current trigger level below the mark.
func (t *TrailingStop) StopPrice() float64 {
	return t.HighWaterMark * (1 - t.TrailingPct)
}

// Triggered reports whether an armed stop fires at the given price. Observe
// must be called first so the mark reflects the latest price.
func (t *TrailingStop) Triggered(price float64) bool {
	return t.Armed(price) && price <= t.StopPrice()
}
