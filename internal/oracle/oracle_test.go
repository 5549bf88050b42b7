package oracle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/coinpilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestEvaluateApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/evaluate", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BTC", req.Symbol)

		json.NewEncoder(w).Encode(map[string]any{
			"approved":  true,
			"reasoning": "momentum supports entry",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Timeout: 5 * time.Second}, testLogger())
	verdict, err := client.Evaluate(context.Background(), Request{Symbol: "BTC", Regime: domain.RegimeBull})
	require.NoError(t, err)
	assert.True(t, verdict.Approved)
	assert.Equal(t, "momentum supports entry", verdict.Reasoning)
}

func TestEvaluateServerErrorRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, testLogger())
	verdict, err := client.Evaluate(context.Background(), Request{Symbol: "BTC"})
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Reasoning, "oracle unavailable")
}

func TestEvaluateTimeoutRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, testLogger())
	verdict, err := client.Evaluate(context.Background(), Request{Symbol: "BTC"})
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
	assert.False(t, verdict.Approved)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	for i := 0; i < 5; i++ {
		_, err := client.Evaluate(context.Background(), Request{Symbol: "BTC"})
		require.Error(t, err)
	}
	// Breaker opened after 3 consecutive failures; later attempts never
	// reach the server.
	assert.Equal(t, 3, calls)
}
