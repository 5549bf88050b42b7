package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinpilot/coinpilot/internal/analytics"
	"github.com/coinpilot/coinpilot/internal/domain"
	"github.com/coinpilot/coinpilot/internal/engine"
	"github.com/coinpilot/coinpilot/internal/executor"
	"github.com/coinpilot/coinpilot/internal/feed"
	"github.com/coinpilot/coinpilot/internal/indicator"
	"github.com/coinpilot/coinpilot/internal/notify"
	"github.com/coinpilot/coinpilot/internal/oracle"
	"github.com/coinpilot/coinpilot/internal/pipeline"
	"github.com/coinpilot/coinpilot/internal/regime"
	"github.com/coinpilot/coinpilot/internal/risk"
	"github.com/coinpilot/coinpilot/internal/server"
	"github.com/coinpilot/coinpilot/internal/server/handler"
	"github.com/coinpilot/coinpilot/internal/strategy"
)

// tradingCore bundles the decision loop and the services it is built from.
type tradingCore struct {
	loop    *engine.Loop
	regimes *regime.Service
}

// buildTradingCore assembles the full decision and execution stack: indicator
// engine, regime service, risk chain, ledger, and the per-symbol loop.
func (a *App) buildTradingCore(deps *Dependencies) *tradingCore {
	cfg := a.cfg

	indicators := indicator.NewEngine(indicator.DefaultParams())
	classifier := regime.NewClassifier(regime.DefaultParams())
	regimes := regime.NewService(classifier, deps.CandleStore, deps.RegimeCache, cfg.Engine.CandleLimit, a.logger)
	matrix := strategy.DefaultMatrix()

	resolver := risk.NewPriceResolver(deps.PriceCache, deps.CandleStore, a.logger)

	var override *risk.EquityOverride
	if cfg.Engine.EquityOverride > 0 {
		override = &risk.EquityOverride{
			Equity:    cfg.Engine.EquityOverride,
			ExpiresAt: time.Now().UTC().Add(cfg.Engine.EquityOverrideTTL.Duration),
		}
	}
	equity := risk.NewEquityService(deps.AccountStore, deps.PositionStore, resolver, deps.EquityCache, override, a.logger)

	limits := risk.Limits{
		MaxDailyLossFrac:       cfg.Risk.MaxDailyLossFrac,
		MaxDailyTrades:         cfg.Risk.MaxDailyTrades,
		MaxPerOrderFrac:        cfg.Risk.MaxPerOrderFrac,
		MaxTotalExposureFrac:   cfg.Risk.MaxTotalExposureFrac,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		AllowDuplicateEntries:  cfg.Risk.AllowDuplicateEntries,
		FeeBufferFrac:          cfg.Risk.FeeBufferFrac,
		CooldownLosses:         cfg.Risk.CooldownLosses,
		CooldownDuration:       cfg.Risk.CooldownDuration.Duration,
		HighVolMultiplier:      cfg.Risk.HighVolMultiplier,
	}
	validator := risk.NewValidator(limits, deps.RiskStateStore, deps.PositionStore, deps.AccountStore,
		equity, resolver, deps.VolatilityCache, deps.AuditStore, deps.Notifier, a.logger)
	tracker := risk.NewTracker(limits, deps.RiskStateStore, deps.Notifier, a.logger)

	var approver oracle.Approver = oracle.AutoApprove{}
	if cfg.Oracle.Enabled {
		approver = oracle.NewClient(oracle.Config{
			BaseURL: cfg.Oracle.BaseURL,
			APIKey:  cfg.Oracle.APIKey,
			Timeout: cfg.Oracle.Timeout.Duration,
		}, a.logger)
	}

	ledger := executor.NewLedger(deps.TxManager, a.logger)
	exec := executor.NewExecutor(ledger, validator, tracker, approver,
		deps.LockManager, deps.AuditStore, deps.Notifier, a.logger)

	loop := engine.NewLoop(engine.Config{
		Symbols:           cfg.Engine.Symbols,
		Interval:          cfg.Engine.Interval.Duration,
		CandleLimit:       cfg.Engine.CandleLimit,
		MaxDataAge:        cfg.Engine.MaxDataAge.Duration,
		StrategyName:      cfg.Engine.StrategyName,
		OrderFrac:         cfg.Engine.OrderFrac,
		HighVolMultiplier: cfg.Risk.HighVolMultiplier,
	}, deps.CandleStore, indicators, regimes, matrix, deps.PositionStore,
		resolver, equity, deps.VolatilityCache, exec, deps.StatusCache, a.logger)

	return &tradingCore{loop: loop, regimes: regimes}
}

// startFeeds launches the websocket ticker stream and registers the periodic
// kline backfill on the scheduler.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, sched *engine.Scheduler, deps *Dependencies) {
	cfg := a.cfg

	rest := feed.NewRESTClient(feed.RESTConfig{
		BaseURL:           cfg.Feed.RESTBaseURL,
		Timeout:           cfg.Feed.Timeout.Duration,
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
		Burst:             cfg.Feed.Burst,
	})
	backfiller := feed.NewBackfiller(rest, deps.CandleStore, cfg.Engine.Symbols,
		domain.Interval1m, cfg.Feed.SeedDepth, cfg.Feed.IncrementDepth, a.logger)
	sched.Add(engine.Job{
		Name:       "backfill",
		Interval:   cfg.Feed.BackfillInterval.Duration,
		Run:        backfiller.Run,
		RunOnStart: true,
	})

	ticker := feed.NewTickerFeed(cfg.Feed.WSBaseURL, cfg.Engine.Symbols,
		deps.PriceCache, deps.SignalBus, a.logger)
	g.Go(func() error {
		defer ticker.Close()
		return ticker.Run(ctx)
	})
}

// addMaintenanceJobs registers the regime refresh, volatility refresh,
// retention, and daily-report jobs on the scheduler.
func (a *App) addMaintenanceJobs(sched *engine.Scheduler, deps *Dependencies, regimes *regime.Service) {
	cfg := a.cfg

	if regimes != nil {
		sched.Add(engine.Job{
			Name:     "regime_refresh",
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				var last error
				for _, symbol := range cfg.Engine.Symbols {
					if _, err := regimes.Refresh(ctx, symbol); err != nil {
						last = err
					}
				}
				return last
			},
			RunOnStart: true,
		})
	}

	vol := analytics.NewService(analytics.NewEstimator(analytics.DefaultParams()),
		deps.CandleStore, deps.VolatilityCache, cfg.Engine.Symbols, cfg.Analytics.CandleLimit, a.logger)
	sched.Add(engine.Job{
		Name:       "volatility_refresh",
		Interval:   cfg.Analytics.RefreshInterval.Duration,
		Run:        vol.Refresh,
		RunOnStart: true,
	})

	// Without an archiver the ledger history is never pruned; candles can
	// still be aged out since the exchange keeps the historical bars.
	tradeRetention := time.Duration(cfg.Retention.TradeDays) * 24 * time.Hour
	if deps.Archiver == nil {
		tradeRetention = 0
	}
	candleRetention := time.Duration(cfg.Retention.CandleDays) * 24 * time.Hour
	if tradeRetention > 0 || candleRetention > 0 {
		retention := pipeline.NewRetention(deps.Archiver, deps.TradeStore, deps.AuditStore,
			deps.CandleStore, tradeRetention, candleRetention, a.logger)
		sched.Add(engine.Job{
			Name:     "retention",
			Interval: cfg.Retention.Interval.Duration,
			Run:      retention.Run,
		})
	}

	if cfg.Retention.DailyReportAt != "" {
		reporter := notify.NewReporter(deps.AccountStore, deps.PositionStore,
			deps.RiskStateStore, deps.Notifier, a.logger)
		reportAt, _ := time.Parse("15:04", cfg.Retention.DailyReportAt)
		sched.Add(engine.Job{
			Name:     "daily_report",
			Interval: time.Minute,
			Run: func(ctx context.Context) error {
				now := time.Now().UTC()
				due := time.Date(now.Year(), now.Month(), now.Day(),
					reportAt.Hour(), reportAt.Minute(), 0, 0, time.UTC)
				if now.Before(due) {
					return nil
				}
				return reporter.Run(ctx)
			},
		})
	}
}

// startHTTPServer builds the handler set and runs the read-only API until the
// context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	cfg := a.cfg
	logger := a.logger

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, logger),
		Status: handler.NewStatusHandler(cfg.Mode, cfg.Engine.StrategyName, cfg.Engine.Symbols,
			deps.StatusCache, deps.PositionStore, deps.AccountStore, deps.RiskStateStore, logger),
		Positions: handler.NewPositionHandler(deps.PositionStore, deps.PriceCache, logger),
		Trades:    handler.NewTradeHandler(deps.TradeStore, logger),
		Candles:   handler.NewCandleHandler(deps.CandleStore, logger),
		Risk:      handler.NewRiskHandler(deps.RiskStateStore, deps.AuditStore, logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, logger)
	}

	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
	}, handlers, logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// TradeMode runs the data feeds, maintenance jobs, and the live decision loop
// without the HTTP API.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Notifier.Run(ctx) })

	sched := engine.NewScheduler(a.logger)
	a.startFeeds(ctx, g, sched, deps)

	core := a.buildTradingCore(deps)
	a.addMaintenanceJobs(sched, deps, core.regimes)

	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return core.loop.Run(ctx) })

	return g.Wait()
}

// MonitorMode collects market data and serves the read-only API without ever
// placing orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Notifier.Run(ctx) })

	sched := engine.NewScheduler(a.logger)
	a.startFeeds(ctx, g, sched, deps)
	a.addMaintenanceJobs(sched, deps, nil)
	g.Go(func() error { return sched.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServerMode serves the read-only API over existing stored data. No feeds,
// no jobs, no trading.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: feeds, maintenance jobs, the decision loop, and
// the HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Notifier.Run(ctx) })

	sched := engine.NewScheduler(a.logger)
	a.startFeeds(ctx, g, sched, deps)

	core := a.buildTradingCore(deps)
	a.addMaintenanceJobs(sched, deps, core.regimes)

	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return core.loop.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}
