package executor

import (
	"context"
	"sync"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/oracle"
	"github.com/coinpilot/coinpilot/internal/risk"
)

// memLedgerStore is an in-memory stand-in for the Postgres ledger. Begin
// takes a store-wide lock, mimicking the row locks the real TxManager
// acquires, and mutations stay staged until Commit.
type memLedgerStore struct {
	mu        sync.Mutex
	balance   float64
	positions map[string]domain.Position
	trades    []domain.Trade
}

func newMemLedgerStore(balance float64) *memLedgerStore {
	return &memLedgerStore{
		balance:   balance,
		positions: make(map[string]domain.Position),
	}
}

func (s *memLedgerStore) Begin(_ context.Context) (domain.LedgerTx, error) {
	s.mu.Lock()
	return &memLedgerTx{store: s, balance: s.balance}, nil
}

type memLedgerTx struct {
	store   *memLedgerStore
	balance float64

	upserts []domain.Position
	deletes []string
	trades  []domain.Trade
	setBal  *float64
	done    bool
}

func (tx *memLedgerTx) AccountForUpdate(_ context.Context) (domain.Account, error) {
	return domain.Account{ID: "main", Balance: tx.balance}, nil
}

func (tx *memLedgerTx) PositionForUpdate(_ context.Context, symbol string) (domain.Position, error) {
	if p, ok := tx.store.positions[symbol]; ok {
		return p, nil
	}
	return domain.Position{}, domain.ErrNotFound
}

func (tx *memLedgerTx) UpsertPosition(_ context.Context, pos domain.Position) error {
	tx.upserts = append(tx.upserts, pos)
	return nil
}

func (tx *memLedgerTx) DeletePosition(_ context.Context, symbol string) error {
	tx.deletes = append(tx.deletes, symbol)
	return nil
}

func (tx *memLedgerTx) UpdateBalance(_ context.Context, balance float64) error {
	tx.setBal = &balance
	return nil
}

func (tx *memLedgerTx) InsertTrade(_ context.Context, trade domain.Trade) error {
	tx.trades = append(tx.trades, trade)
	return nil
}

func (tx *memLedgerTx) Commit(_ context.Context) error {
	for _, p := range tx.upserts {
		tx.store.positions[p.Symbol] = p
	}
	for _, symbol := range tx.deletes {
		delete(tx.store.positions, symbol)
	}
	tx.store.trades = append(tx.store.trades, tx.trades...)
	if tx.setBal != nil {
		tx.store.balance = *tx.setBal
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

func (tx *memLedgerTx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

type fakeLockManager struct{}

func (fakeLockManager) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	return func() {}, nil
}

type fakeApprover struct {
	verdict oracle.Verdict
	err     error
	calls   int
}

func (f *fakeApprover) Evaluate(_ context.Context, _ oracle.Request) (oracle.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

type fakeRiskChecker struct {
	result risk.CheckResult
	err    error
}

func (f *fakeRiskChecker) CheckOrder(_ context.Context, _ string, _ float64, _ time.Time) (risk.CheckResult, error) {
	return f.result, f.err
}

type fakeTracker struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (f *fakeTracker) ApplyFill(_ context.Context, trade domain.Trade) (domain.DailyRiskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, trade)
	return domain.DailyRiskState{}, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []domain.RiskAudit
}

func (f *fakeAuditStore) Log(_ context.Context, entry domain.RiskAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.RiskAudit, error) {
	return f.entries, nil
}

func (f *fakeAuditStore) ListBefore(_ context.Context, _ time.Time, _ int) ([]domain.RiskAudit, error) {
	return f.entries, nil
}

func (f *fakeAuditStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

var (
	_ domain.TxManager   = (*memLedgerStore)(nil)
	_ domain.LockManager = (fakeLockManager{})
	_ oracle.Approver    = (*fakeApprover)(nil)
	_ Notifier           = (*fakeNotifier)(nil)
	_ RiskChecker        = (*fakeRiskChecker)(nil)
	_ FillTracker        = (*fakeTracker)(nil)
	_ domain.AuditStore  = (*fakeAuditStore)(nil)
)
