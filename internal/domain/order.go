package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// ExitReason labels why a SELL was triggered, in evaluation priority order.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "STOP_LOSS"
	ExitTrailingStop  ExitReason = "TRAILING_STOP"
	ExitTakeProfit    ExitReason = "TAKE_PROFIT"
	ExitRSIOverbought ExitReason = "RSI_OVERBOUGHT"
	ExitTimeLimit     ExitReason = "TIME_LIMIT"
)

// OrderRequest is a candidate order produced by the decision loop.
// ID is a UUID used to deduplicate oracle consultations.
type OrderRequest struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Price      float64
	Quantity   float64 // SELL only; BUY sizes by Amount
	Amount     float64 // BUY only; cash to spend
	Strategy   string
	Regime     Regime
	ExitReason ExitReason // SELL only
	Indicators IndicatorSet
	CreatedAt  time.Time
}

// ResultKind classifies expected non-success outcomes so callers branch on
// values instead of matching error strings.
type ResultKind string

const (
	ResultFilled            ResultKind = "filled"
	ResultDataInsufficient  ResultKind = "data_insufficient"
	ResultRiskRejected      ResultKind = "risk_rejected"
	ResultOracleRejected    ResultKind = "oracle_rejected"
	ResultInsufficientFunds ResultKind = "insufficient_funds"
	ResultInsufficientQty   ResultKind = "insufficient_quantity"
	ResultTimeout           ResultKind = "timeout"
)

// ExecutionResult reports the outcome of one order attempt.
type ExecutionResult struct {
	Kind        ResultKind
	Reason      string
	FillPrice   float64
	FillQty     float64
	RealizedPnL float64 // SELL only
	NewBalance  float64
}

// Filled reports whether the order mutated the ledger.
func (r ExecutionResult) Filled() bool { return r.Kind == ResultFilled }
