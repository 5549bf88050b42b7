package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/server/handler"
)

type stubStatusCache struct{}

func (stubStatusCache) SetSymbol(context.Context, domain.SymbolStatus) error { return nil }
func (stubStatusCache) GetSymbol(context.Context, string) (domain.SymbolStatus, error) {
	return domain.SymbolStatus{}, domain.ErrNotFound
}
func (stubStatusCache) ListSymbols(context.Context, []string) ([]domain.SymbolStatus, error) {
	return nil, nil
}

type stubPositions struct{}

func (stubPositions) Count(context.Context) (int, error) { return 0, nil }

type stubAccount struct{}

func (stubAccount) Get(context.Context) (domain.Account, error) { return domain.Account{}, nil }

type stubRiskStates struct{}

func (stubRiskStates) GetOrCreate(context.Context, time.Time) (domain.DailyRiskState, error) {
	return domain.DailyRiskState{}, nil
}
func (stubRiskStates) Mutate(_ context.Context, day time.Time, fn func(*domain.DailyRiskState)) (domain.DailyRiskState, error) {
	st := domain.DailyRiskState{Date: day}
	fn(&st)
	return st, nil
}

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	status := handler.NewStatusHandler(
		"monitor", "regime_adaptive", nil,
		stubStatusCache{}, stubPositions{}, stubAccount{}, stubRiskStates{},
		logger,
	)

	srv := New(Config{Port: 0, APIKey: apiKey}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Status: status,
	}, logger)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthAndMetricsBypassAuth(t *testing.T) {
	ts := newTestServer(t, "secret")

	for _, path := range []string{"/api/health", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
