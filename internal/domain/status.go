package domain

import "time"

// Action is the decision the loop took for a symbol on its last pass.
type Action string

const (
	ActionHold Action = "HOLD"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionSkip Action = "SKIP"
)

// SymbolStatus is the operator-facing readout for one symbol, refreshed every
// loop pass. Reason must match the reason the decision itself produced.
type SymbolStatus struct {
	Symbol    string
	Action    Action
	Regime    Regime
	Price     float64
	Reason    string
	UpdatedAt time.Time
}

// EngineStatus summarizes the engine's operational state.
type EngineStatus struct {
	Mode          string
	UptimeSeconds int64
	OpenPositions int
	Balance       float64
	Halted        bool
	LastCycleAt   time.Time
}

// DailyReport is the end-of-day summary sent to notification sinks.
type DailyReport struct {
	Date          time.Time
	RealizedPnL   float64
	BuyCount      int
	SellCount     int
	OpenPositions int
	Balance       float64
	Halted        bool
	InCooldown    bool
}
