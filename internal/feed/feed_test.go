package feed

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

func TestKlinesParsesBars(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			[1756500000000,"100.5","101.2","99.8","100.9","1500.25",1756500059999],
			[1756500060000,"100.9","102.0","100.7","101.8","980.40",1756500119999]
		]`)
	}))
	defer srv.Close()

	c := NewRESTClient(RESTConfig{BaseURL: srv.URL})
	candles, err := c.Klines(context.Background(), "BTCUSDT", domain.Interval1m, 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, "/api/v3/klines", gotPath)
	assert.Contains(t, gotQuery, "symbol=BTCUSDT")
	assert.Contains(t, gotQuery, "interval=1m")

	first := candles[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, domain.Interval1m, first.Interval)
	assert.Equal(t, time.UnixMilli(1756500000000).UTC(), first.Timestamp)
	assert.InDelta(t, 100.5, first.Open, 1e-9)
	assert.InDelta(t, 101.2, first.High, 1e-9)
	assert.InDelta(t, 99.8, first.Low, 1e-9)
	assert.InDelta(t, 100.9, first.Close, 1e-9)
	assert.InDelta(t, 1500.25, first.Volume, 1e-9)

	assert.True(t, candles[1].Timestamp.After(first.Timestamp))
}

func TestKlinesRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewRESTClient(RESTConfig{BaseURL: srv.URL})
	_, err := c.Klines(context.Background(), "NOPE", domain.Interval1m, 10, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestKlinesRejectsUnsupportedInterval(t *testing.T) {
	c := NewRESTClient(RESTConfig{BaseURL: "http://unused"})
	_, err := c.Klines(context.Background(), "BTCUSDT", domain.Interval("3w"), 10, time.Time{})
	require.Error(t, err)
}

func TestTickerPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"symbol":"BTCUSDT","price":"64250.10"}`)
	}))
	defer srv.Close()

	c := NewRESTClient(RESTConfig{BaseURL: srv.URL})
	price, err := c.TickerPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 64250.10, price, 1e-9)
}

func TestHandleMessageDispatchesTicker(t *testing.T) {
	s := NewStreamClient("ws://unused")
	var got domain.Ticker
	s.OnTicker(func(tk domain.Ticker) { got = tk })

	s.handleMessage([]byte(`{"e":"24hrMiniTicker","E":1756500000000,"s":"ETHUSDT","c":"2500.5","v":"12000.0"}`))

	assert.Equal(t, "ETHUSDT", got.Symbol)
	assert.InDelta(t, 2500.5, got.Price, 1e-9)
	assert.InDelta(t, 12000.0, got.Volume24h, 1e-9)
	assert.Equal(t, time.UnixMilli(1756500000000).UTC(), got.Timestamp)
}

func TestHandleMessageIgnoresNoise(t *testing.T) {
	s := NewStreamClient("ws://unused")
	called := false
	s.OnTicker(func(domain.Ticker) { called = true })

	s.handleMessage([]byte(`{"result":null,"id":1}`)) // subscribe ack
	s.handleMessage([]byte(`not json`))
	s.handleMessage([]byte(`{"e":"24hrMiniTicker","s":"BTCUSDT","c":"-1"}`))
	s.handleMessage([]byte(`{"e":"24hrMiniTicker","s":"BTCUSDT","c":"garbage"}`))

	assert.False(t, called)
}

type fakeKlineSource struct {
	mu       sync.Mutex
	requests []int
	ends     []time.Time
	errs     map[string]error
	candles  map[string][]domain.Candle
}

// Klines serves the newest bars at or before end from the fake's ascending
// history, mimicking the exchange's paging window.
func (f *fakeKlineSource) Klines(_ context.Context, symbol string, _ domain.Interval, limit int, end time.Time) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, limit)
	f.ends = append(f.ends, end)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	history := f.candles[symbol]
	if !end.IsZero() {
		cut := len(history)
		for cut > 0 && history[cut-1].Timestamp.After(end) {
			cut--
		}
		history = history[:cut]
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

type fakeCandleStore struct {
	mu       sync.Mutex
	upserted [][]domain.Candle
}

func (f *fakeCandleStore) UpsertBatch(_ context.Context, candles []domain.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, candles)
	return nil
}

func (f *fakeCandleStore) ListRecent(context.Context, string, domain.Interval, int) ([]domain.Candle, error) {
	return nil, nil
}

func (f *fakeCandleStore) LatestClose(context.Context, string, domain.Interval) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}

func (f *fakeCandleStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func bars(symbol string, n int) []domain.Candle {
	out := make([]domain.Candle, n)
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = domain.Candle{
			Symbol: symbol, Interval: domain.Interval1m,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1,
		}
	}
	return out
}

func TestBackfillerSeedsThenIncrements(t *testing.T) {
	src := &fakeKlineSource{candles: map[string][]domain.Candle{"BTCUSDT": bars("BTCUSDT", 5)}}
	store := &fakeCandleStore{}
	b := NewBackfiller(src, store, []string{"BTCUSDT"}, domain.Interval1m, 1000, 5, discardLogger())

	require.NoError(t, b.Run(context.Background()))
	require.NoError(t, b.Run(context.Background()))

	require.Len(t, src.requests, 2)
	assert.Equal(t, 1000, src.requests[0], "first pass fetches the deep seed")
	assert.Equal(t, 5, src.requests[1], "later passes only top up")
	assert.Len(t, store.upserted, 2)
}

// A seed deeper than one exchange response pages backwards until the full
// depth is stored, so the hourly moving averages have history on day one.
func TestBackfillerSeedPaginatesDeepHistory(t *testing.T) {
	src := &fakeKlineSource{candles: map[string][]domain.Candle{"BTCUSDT": bars("BTCUSDT", 2500)}}
	store := &fakeCandleStore{}
	b := NewBackfiller(src, store, []string{"BTCUSDT"}, domain.Interval1m, 2500, 5, discardLogger())

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, []int{1000, 1000, 500}, src.requests)
	assert.True(t, src.ends[0].IsZero(), "newest page has no end bound")
	assert.True(t, src.ends[1].Equal(store.upserted[0][0].Timestamp.Add(-time.Millisecond)),
		"second page ends just before the first page's oldest bar")

	total := 0
	for _, page := range store.upserted {
		total += len(page)
	}
	assert.Equal(t, 2500, total)

	// Pages walk strictly backwards; no bar is fetched twice.
	require.Len(t, store.upserted, 3)
	assert.True(t, store.upserted[1][len(store.upserted[1])-1].Timestamp.
		Before(store.upserted[0][0].Timestamp))
}

func TestKlinesSendsEndTime(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewRESTClient(RESTConfig{BaseURL: srv.URL})
	end := time.UnixMilli(1756500000000)
	_, err := c.Klines(context.Background(), "BTCUSDT", domain.Interval1m, 5000, end)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "endTime=1756500000000")
	assert.Contains(t, gotQuery, "limit=1000", "request limit clamps to the exchange cap")
}

func TestBackfillerFailedSeedRetriesDeep(t *testing.T) {
	src := &fakeKlineSource{
		candles: map[string][]domain.Candle{"BTCUSDT": bars("BTCUSDT", 5)},
		errs:    map[string]error{"BTCUSDT": errors.New("rate limited")},
	}
	store := &fakeCandleStore{}
	b := NewBackfiller(src, store, []string{"BTCUSDT"}, domain.Interval1m, 1000, 5, discardLogger())

	require.Error(t, b.Run(context.Background()))
	src.errs = map[string]error{}
	require.NoError(t, b.Run(context.Background()))

	require.Len(t, src.requests, 2)
	assert.Equal(t, 1000, src.requests[1], "seed depth retried after failure")
}

func TestBackfillerIsolatesSymbolFailures(t *testing.T) {
	src := &fakeKlineSource{
		candles: map[string][]domain.Candle{
			"BTCUSDT": bars("BTCUSDT", 5),
			"ETHUSDT": bars("ETHUSDT", 5),
		},
		errs: map[string]error{"BTCUSDT": errors.New("boom")},
	}
	store := &fakeCandleStore{}
	b := NewBackfiller(src, store, []string{"BTCUSDT", "ETHUSDT"}, domain.Interval1m, 100, 5, discardLogger())

	err := b.Run(context.Background())
	require.Error(t, err)
	// ETHUSDT still landed in the store.
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "ETHUSDT", store.upserted[0][0].Symbol)
}
