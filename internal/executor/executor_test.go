package executor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/oracle"
	"github.com/coinpilot/coinpilot/internal/risk"
)

type executorFixture struct {
	exec     *Executor
	store    *memLedgerStore
	risk     *fakeRiskChecker
	tracker  *fakeTracker
	approver *fakeApprover
	audit    *fakeAuditStore
	notifier *fakeNotifier
}

func newExecutorFixture(balance float64) *executorFixture {
	logger := discardLogger()
	f := &executorFixture{
		store:    newMemLedgerStore(balance),
		risk:     &fakeRiskChecker{result: risk.CheckResult{OK: true}},
		tracker:  &fakeTracker{},
		approver: &fakeApprover{verdict: oracle.Verdict{Approved: true}},
		audit:    &fakeAuditStore{},
		notifier: &fakeNotifier{},
	}
	f.exec = NewExecutor(NewLedger(f.store, logger), f.risk, f.tracker, f.approver,
		fakeLockManager{}, f.audit, f.notifier, logger)
	return f
}

func candidate(symbol string, price, amount float64) domain.OrderRequest {
	req := buyReq(symbol, price, amount)
	req.ID = uuid.NewString()
	return req
}

func TestExecuteBuyHappyPath(t *testing.T) {
	f := newExecutorFixture(10_000)

	res, err := f.exec.ExecuteBuy(context.Background(), candidate("BTC", 100, 500))
	require.NoError(t, err)
	assert.True(t, res.Filled())
	assert.Equal(t, 1, f.approver.calls)
	require.Len(t, f.tracker.trades, 1)
	assert.Equal(t, domain.OrderSideBuy, f.tracker.trades[0].Side)
	assert.Contains(t, f.notifier.events, "order_filled")
}

func TestExecuteBuyRiskRejected(t *testing.T) {
	f := newExecutorFixture(10_000)
	f.risk.result = risk.CheckResult{Check: "order_size", Reason: "amount 600.00 exceeds per-order cap 500.00"}

	res, err := f.exec.ExecuteBuy(context.Background(), candidate("BTC", 100, 600))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultRiskRejected, res.Kind)
	assert.Contains(t, res.Reason, "per-order cap")

	// No oracle consultation, no ledger mutation, no tracker update.
	assert.Equal(t, 0, f.approver.calls)
	assert.Empty(t, f.store.trades)
	assert.Empty(t, f.tracker.trades)
}

func TestExecuteBuyOracleRejected(t *testing.T) {
	f := newExecutorFixture(10_000)
	f.approver.verdict = oracle.Verdict{Approved: false, Reasoning: "sentiment deteriorating"}

	res, err := f.exec.ExecuteBuy(context.Background(), candidate("BTC", 100, 500))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultOracleRejected, res.Kind)
	assert.Equal(t, "sentiment deteriorating", res.Reason)

	// The rejection is recorded for observability.
	require.NotEmpty(t, f.audit.entries)
	assert.Equal(t, "oracle", f.audit.entries[0].Check)
	assert.Empty(t, f.store.trades)
	assert.Contains(t, f.notifier.events, "order_rejected")
}

func TestExecuteBuyOracleErrorIsConservativeReject(t *testing.T) {
	f := newExecutorFixture(10_000)
	f.approver.verdict = oracle.Verdict{Approved: false, Reasoning: "oracle unavailable: timeout"}
	f.approver.err = domain.ErrOracleUnavailable

	res, err := f.exec.ExecuteBuy(context.Background(), candidate("BTC", 100, 500))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultOracleRejected, res.Kind)
	assert.Empty(t, f.store.trades)
}

// The oracle must never be consulted twice for one candidate order.
func TestExecuteBuyOracleConsultedOncePerCandidate(t *testing.T) {
	f := newExecutorFixture(10_000)
	f.approver.verdict = oracle.Verdict{Approved: false, Reasoning: "no"}

	req := candidate("BTC", 100, 500)
	_, err := f.exec.ExecuteBuy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, f.approver.calls)

	res, err := f.exec.ExecuteBuy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultOracleRejected, res.Kind)
	assert.Equal(t, "candidate already evaluated", res.Reason)
	assert.Equal(t, 1, f.approver.calls)
}

func TestExecuteSellSkipsRiskChain(t *testing.T) {
	f := newExecutorFixture(10_000)
	// A failing risk chain must not block SELLs.
	f.risk.result = risk.CheckResult{Check: "halted", Reason: "trading halted for the day"}

	_, err := f.exec.ExecuteBuy(context.Background(), candidate("BTC", 100, 500))
	require.NoError(t, err) // rejected, nothing held
	f.store.positions["BTC"] = domain.Position{Symbol: "BTC", Quantity: 5, AvgEntryPrice: 100}

	res, err := f.exec.ExecuteSell(context.Background(), sellReq("BTC", 90, 5, domain.ExitStopLoss))
	require.NoError(t, err)
	assert.True(t, res.Filled())
	require.Len(t, f.tracker.trades, 1)
	assert.Equal(t, domain.OrderSideSell, f.tracker.trades[0].Side)
	assert.InDelta(t, -50.0, f.tracker.trades[0].RealizedPnL, 1e-9)
}

func TestExecuteSellInsufficientQuantityAudited(t *testing.T) {
	f := newExecutorFixture(10_000)

	res, err := f.exec.ExecuteSell(context.Background(), sellReq("BTC", 100, 1, domain.ExitTimeLimit))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultInsufficientQty, res.Kind)
	require.NotEmpty(t, f.audit.entries)
	assert.Equal(t, "ledger", f.audit.entries[0].Check)
	assert.Empty(t, f.tracker.trades)
}
