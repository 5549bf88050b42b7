package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// RESTConfig configures the exchange REST client.
type RESTConfig struct {
	// BaseURL is the API root, e.g. "https://api.binance.com".
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond and Burst bound the request rate so backfill never
	// trips the exchange's IP limits.
	RequestsPerSecond float64
	Burst             int
}

// RESTClient fetches candles and spot prices from a Binance-compatible REST
// API. All requests pass through a shared rate limiter.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRESTClient creates a rate-limited exchange REST client.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &RESTClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

var intervalCodes = map[domain.Interval]string{
	domain.Interval1m: "1m",
	domain.Interval5m: "5m",
	domain.Interval1h: "1h",
	domain.Interval1d: "1d",
}

// maxKlinesPerRequest is the exchange's per-response cap on klines.
const maxKlinesPerRequest = 1000

// Klines returns up to limit closed bars for symbol+interval, oldest first.
// A non-zero end bounds the window to bars opening at or before it; callers
// reach deeper history by walking end backwards one page at a time.
func (c *RESTClient) Klines(ctx context.Context, symbol string, interval domain.Interval, limit int, end time.Time) ([]domain.Candle, error) {
	code, ok := intervalCodes[interval]
	if !ok {
		return nil, fmt.Errorf("feed: unsupported interval %q", interval)
	}
	if limit > maxKlinesPerRequest {
		limit = maxKlinesPerRequest
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", code)
	params.Set("limit", strconv.Itoa(limit))
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}

	body, err := c.get(ctx, "/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("feed: get klines %s: %w", symbol, err)
	}

	// Each kline is a positional array:
	// [openTimeMs, open, high, low, close, volume, closeTimeMs, ...]
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("feed: decode klines %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, interval, k)
		if err != nil {
			return nil, fmt.Errorf("feed: parse kline %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// TickerPrice returns the current spot price for a symbol.
func (c *RESTClient) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.get(ctx, "/api/v3/ticker/price?symbol="+url.QueryEscape(symbol))
	if err != nil {
		return 0, fmt.Errorf("feed: get ticker %s: %w", symbol, err)
	}
	var resp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("feed: decode ticker %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("feed: parse ticker price %s: %w", symbol, err)
	}
	return price, nil
}

func (c *RESTClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func parseKline(symbol string, interval domain.Interval, k []any) (domain.Candle, error) {
	if len(k) < 6 {
		return domain.Candle{}, fmt.Errorf("short kline: %d fields", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return domain.Candle{}, fmt.Errorf("open time is %T", k[0])
	}
	fields := make([]float64, 5)
	for i := range 5 {
		s, ok := k[i+1].(string)
		if !ok {
			return domain.Candle{}, fmt.Errorf("field %d is %T", i+1, k[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		fields[i] = v
	}
	return domain.Candle{
		Symbol:    symbol,
		Interval:  interval,
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
