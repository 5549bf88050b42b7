package risk

import (
	"context"
	"sync"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

type fakeStateStore struct {
	mu     sync.Mutex
	states map[time.Time]domain.DailyRiskState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[time.Time]domain.DailyRiskState)}
}

func (f *fakeStateStore) GetOrCreate(_ context.Context, day time.Time) (domain.DailyRiskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[day]; ok {
		return s, nil
	}
	s := domain.DailyRiskState{Date: day}
	f.states[day] = s
	return s, nil
}

func (f *fakeStateStore) Mutate(_ context.Context, day time.Time, fn func(*domain.DailyRiskState)) (domain.DailyRiskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[day]
	if !ok {
		s = domain.DailyRiskState{Date: day}
	}
	fn(&s)
	f.states[day] = s
	return s, nil
}

type fakePositionStore struct {
	positions map[string]domain.Position
}

func newFakePositionStore(positions ...domain.Position) *fakePositionStore {
	f := &fakePositionStore{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		f.positions[p.Symbol] = p
	}
	return f
}

func (f *fakePositionStore) Get(_ context.Context, symbol string) (domain.Position, error) {
	if p, ok := f.positions[symbol]; ok {
		return p, nil
	}
	return domain.Position{}, domain.ErrNotFound
}

func (f *fakePositionStore) ListOpen(_ context.Context) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePositionStore) Count(_ context.Context) (int, error) {
	return len(f.positions), nil
}

func (f *fakePositionStore) SetHighWaterMark(_ context.Context, symbol string, mark float64) error {
	if p, ok := f.positions[symbol]; ok && mark > p.HighWaterMark {
		p.HighWaterMark = mark
		f.positions[symbol] = p
	}
	return nil
}

type fakeAccountStore struct {
	balance float64
}

func (f *fakeAccountStore) Get(_ context.Context) (domain.Account, error) {
	return domain.Account{ID: "main", Balance: f.balance}, nil
}

type fakeEquityCache struct {
	mu   sync.Mutex
	refs map[time.Time]domain.ReferenceEquity
}

func newFakeEquityCache() *fakeEquityCache {
	return &fakeEquityCache{refs: make(map[time.Time]domain.ReferenceEquity)}
}

func (f *fakeEquityCache) Set(_ context.Context, ref domain.ReferenceEquity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[ref.Date] = ref
	return nil
}

func (f *fakeEquityCache) Get(_ context.Context, day time.Time) (domain.ReferenceEquity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.refs[day]; ok {
		return r, nil
	}
	return domain.ReferenceEquity{}, domain.ErrNotFound
}

type fakeVolCache struct {
	snaps map[string]domain.VolatilitySnapshot
}

func (f *fakeVolCache) Set(_ context.Context, snap domain.VolatilitySnapshot) error {
	if f.snaps == nil {
		f.snaps = make(map[string]domain.VolatilitySnapshot)
	}
	f.snaps[snap.Symbol] = snap
	return nil
}

func (f *fakeVolCache) Get(_ context.Context, symbol string) (domain.VolatilitySnapshot, error) {
	if s, ok := f.snaps[symbol]; ok {
		return s, nil
	}
	return domain.VolatilitySnapshot{}, domain.ErrNotFound
}

type fakeAuditStore struct {
	entries []domain.RiskAudit
}

func (f *fakeAuditStore) Log(_ context.Context, entry domain.RiskAudit) error {
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
	n := int64(len(f.entries))
	f.entries = nil
	return n, nil
}

type fakePriceCache struct {
	prices map[string]float64
}

func (f *fakePriceCache) SetPrice(_ context.Context, symbol string, price float64, _ time.Time) error {
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[symbol] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	if p, ok := f.prices[symbol]; ok {
		return p, time.Now(), nil
	}
	return 0, time.Time{}, domain.ErrNotFound
}

func (f *fakePriceCache) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

type fakeCandleStore struct {
	closes map[string]float64
}

func (f *fakeCandleStore) UpsertBatch(_ context.Context, _ []domain.Candle) error { return nil }

func (f *fakeCandleStore) ListRecent(_ context.Context, _ string, _ domain.Interval, _ int) ([]domain.Candle, error) {
	return nil, nil
}

func (f *fakeCandleStore) LatestClose(_ context.Context, symbol string, _ domain.Interval) (float64, time.Time, error) {
	if c, ok := f.closes[symbol]; ok {
		return c, time.Now(), nil
	}
	return 0, time.Time{}, domain.ErrNotFound
}

func (f *fakeCandleStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAlerter) Notify(event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

var (
	_ domain.RiskStateStore  = (*fakeStateStore)(nil)
	_ domain.PositionStore   = (*fakePositionStore)(nil)
	_ domain.AccountStore    = (*fakeAccountStore)(nil)
	_ domain.EquityCache     = (*fakeEquityCache)(nil)
	_ domain.VolatilityCache = (*fakeVolCache)(nil)
	_ domain.AuditStore      = (*fakeAuditStore)(nil)
	_ domain.PriceCache      = (*fakePriceCache)(nil)
	_ domain.CandleStore     = (*fakeCandleStore)(nil)
	_ Alerter                = (*fakeAlerter)(nil)
)
