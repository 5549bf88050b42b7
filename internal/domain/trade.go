package domain

import "time"

// Trade is one immutable fill record. Never mutated after insert; realized
// PnL for a SELL is attributed against the entry average price carried here.
type Trade struct {
	ID            string
	Symbol        string
	Side          OrderSide
	Price         float64
	Quantity      float64
	Amount        float64
	Strategy      string
	Regime        Regime
	ExitReason    ExitReason // SELL only, empty otherwise
	EntryAvgPrice float64    // SELL only; the avg price the PnL was computed against
	RealizedPnL   float64    // SELL only
	Signal        IndicatorSet
	ExecutedAt    time.Time
}

// RiskAudit is one row of the append-only risk violation log.
type RiskAudit struct {
	ID        int64
	Symbol    string
	Check     string
	Reason    string
	Amount    float64
	CreatedAt time.Time
}
