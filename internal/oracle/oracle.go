// Package oracle wraps the external approval service that gets the final say
// on every BUY candidate. The call is bounded by a hard timeout and a circuit
// breaker; any failure degrades to rejection, never approval.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// Verdict is the oracle's answer for one candidate order.
type Verdict struct {
	Approved  bool
	Reasoning string
}

// Approver is the decision-loop-facing contract.
type Approver interface {
	Evaluate(ctx context.Context, req Request) (Verdict, error)
}

// Request carries the candidate and its decision-time context.
type Request struct {
	Symbol        string              `json:"symbol"`
	Strategy      string              `json:"strategy"`
	Regime        domain.Regime       `json:"regime"`
	Amount        float64             `json:"amount"`
	Indicators    domain.IndicatorSet `json:"indicators"`
	MarketContext map[string]any      `json:"market_context,omitempty"`
}

type response struct {
	Approved  bool   `json:"approved"`
	Reasoning string `json:"reasoning"`
}

// Config holds the oracle client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the approval service over HTTP behind a circuit breaker.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient builds a Client. The breaker opens after 3 consecutive failures
// or a >5% failure rate over a meaningful sample, and holds open for a
// minute; an open breaker short-circuits straight to rejection.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:     "approval-oracle",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger.With(slog.String("component", "oracle")),
	}
}

// Evaluate asks the oracle to approve the candidate. Timeout, transport
// error, non-200 status, and an open breaker all return a rejected Verdict
// along with the error; callers treat any error as a rejection.
func (c *Client) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		c.logger.Warn("oracle evaluation failed, rejecting",
			slog.String("symbol", req.Symbol), slog.String("error", err.Error()))
		return Verdict{Approved: false, Reasoning: fmt.Sprintf("oracle unavailable: %v", err)},
			fmt.Errorf("oracle: %w", domain.ErrOracleUnavailable)
	}
	return out.(Verdict), nil
}

func (c *Client) call(ctx context.Context, req Request) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("oracle: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/evaluate", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("oracle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("oracle: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("oracle: unexpected status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Verdict{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	return Verdict{Approved: parsed.Approved, Reasoning: parsed.Reasoning}, nil
}

// AutoApprove approves every candidate locally. Used when no external
// approval service is configured.
type AutoApprove struct{}

// Evaluate always approves.
func (AutoApprove) Evaluate(context.Context, Request) (Verdict, error) {
	return Verdict{Approved: true, Reasoning: "approved locally"}, nil
}

var _ Approver = AutoApprove{}
