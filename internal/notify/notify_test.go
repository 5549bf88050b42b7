package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/coinpilot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type captureSender struct {
	mu       sync.Mutex
	titles   []string
	messages []string
	err      error
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return c.err
}

func (c *captureSender) Name() string { return "capture" }

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.titles)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestNotifierDeliversQueuedAlerts(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, nil, 16, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Notify("order_filled", map[string]any{"symbol": "BTCUSDT", "price": 64000.0})
	waitFor(t, func() bool { return sender.count() == 1 })

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "order filled", sender.titles[0])
	assert.Contains(t, sender.messages[0], "symbol: BTCUSDT")
	assert.Contains(t, sender.messages[0], "price: 64000")
}

func TestNotifierFiltersEvents(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{"trading_halted"}, 16, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Notify("order_filled", nil)
	n.Notify("trading_halted", map[string]any{"loss_pct": -6.0})
	waitFor(t, func() bool { return sender.count() == 1 })

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "trading halted", sender.titles[0])
}

// A full queue must drop, never block the caller.
func TestNotifierFullQueueDropsWithoutBlocking(t *testing.T) {
	n := NewNotifier([]Sender{&captureSender{}}, nil, 2, discardLogger())
	// No Run goroutine: the queue fills and stays full.

	done := make(chan struct{})
	go func() {
		for range 10 {
			n.Notify("order_filled", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestNotifierSenderFailureDoesNotStopOthers(t *testing.T) {
	failing := &captureSender{err: errors.New("rate limited")}
	healthy := &captureSender{}
	n := NewNotifier([]Sender{failing, healthy}, nil, 16, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Notify("risk_rejected", map[string]any{"check": "cash"})
	waitFor(t, func() bool { return healthy.count() == 1 })
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "cooldown armed", "losses: 3"))
	assert.Contains(t, string(body), `"title":"cooldown armed"`)
	assert.Contains(t, string(body), `"message":"losses: 3"`)
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

type fakeAccountStore struct{ balance float64 }

func (f *fakeAccountStore) Get(context.Context) (domain.Account, error) {
	return domain.Account{ID: "main", Balance: f.balance}, nil
}

type fakePositionStore struct{ open []domain.Position }

func (f *fakePositionStore) Get(context.Context, string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}
func (f *fakePositionStore) ListOpen(context.Context) ([]domain.Position, error) {
	return f.open, nil
}
func (f *fakePositionStore) Count(context.Context) (int, error) { return len(f.open), nil }
func (f *fakePositionStore) SetHighWaterMark(context.Context, string, float64) error {
	return nil
}

type fakeStateStore struct{ state domain.DailyRiskState }

func (f *fakeStateStore) GetOrCreate(_ context.Context, day time.Time) (domain.DailyRiskState, error) {
	s := f.state
	s.Date = day
	return s, nil
}
func (f *fakeStateStore) Mutate(_ context.Context, day time.Time, fn func(*domain.DailyRiskState)) (domain.DailyRiskState, error) {
	s := f.state
	s.Date = day
	fn(&s)
	f.state = s
	return s, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSink) Notify(event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func TestReporterBuildsDailyReport(t *testing.T) {
	r := NewReporter(
		&fakeAccountStore{balance: 8_500},
		&fakePositionStore{open: []domain.Position{{Symbol: "BTCUSDT"}, {Symbol: "ETHUSDT"}}},
		&fakeStateStore{state: domain.DailyRiskState{RealizedPnL: -120.5, BuyCount: 4, SellCount: 3}},
		&fakeSink{},
		discardLogger(),
	)

	now := time.Date(2026, 8, 30, 23, 50, 0, 0, time.UTC)
	report, err := r.Build(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), report.Date)
	assert.InDelta(t, -120.5, report.RealizedPnL, 1e-9)
	assert.Equal(t, 4, report.BuyCount)
	assert.Equal(t, 3, report.SellCount)
	assert.Equal(t, 2, report.OpenPositions)
	assert.InDelta(t, 8_500.0, report.Balance, 1e-9)
}

func TestReporterSendsOncePerDay(t *testing.T) {
	sink := &fakeSink{}
	r := NewReporter(&fakeAccountStore{}, &fakePositionStore{}, &fakeStateStore{}, sink, discardLogger())

	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, r.Run(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, "daily_report", sink.events[0])
}
