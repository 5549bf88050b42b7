// Package server exposes the read-only HTTP API: engine status, per-symbol
// decisions, positions, trade history, risk state, and Prometheus metrics.
// The trading loop never depends on this package; stopping the server does
// not stop trading.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coinpilot/coinpilot/internal/server/handler"
	"github.com/coinpilot/coinpilot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string  // if empty, authentication is disabled
	RateLimit   float64 // requests per second per client IP; <=0 disables
	RateBurst   int
}

// Handlers aggregates all HTTP handlers that the server registers. Archives
// is optional; its routes are registered only when object storage is wired.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Positions *handler.PositionHandler
	Trades    *handler.TradeHandler
	Candles   *handler.CandleHandler
	Risk      *handler.RiskHandler
	Archives  *handler.ArchiveHandler
}

// Server is the headless HTTP API server for the trading engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (rate limiting, auth, logging, CORS) applied. /api/health and /metrics
// bypass authentication so probes and scrapers need no credentials.
func New(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/symbols", handlers.Status.ListSymbols)
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	mux.HandleFunc("GET /api/candles", handlers.Candles.ListCandles)
	mux.HandleFunc("GET /api/risk", handlers.Risk.GetRiskState)
	mux.HandleFunc("GET /api/risk/audit", handlers.Risk.ListAudit)
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
		mux.HandleFunc("GET /api/archives/{kind}/{month}", handlers.Archives.DownloadArchive)
	}

	var api http.Handler = mux
	api = middleware.Auth(cfg.APIKey)(api)

	root := http.NewServeMux()
	root.Handle("/api/", api)
	root.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	root.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = root
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
		}
		h = middleware.RateLimit(cfg.RateLimit, burst)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
