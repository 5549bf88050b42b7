// Package config defines the top-level configuration for the trading engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by COINPILOT_* environment variables.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Risk      RiskConfig      `toml:"risk"`
	Oracle    OracleConfig    `toml:"oracle"`
	Feed      FeedConfig      `toml:"feed"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Retention RetentionConfig `toml:"retention"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// EngineConfig holds the decision loop parameters.
type EngineConfig struct {
	Symbols      []string `toml:"symbols"`
	Interval     duration `toml:"interval"`
	CandleLimit  int      `toml:"candle_limit"`
	MaxDataAge   duration `toml:"max_data_age"`
	StrategyName string   `toml:"strategy_name"`
	// OrderFrac sizes BUY amounts as a fraction of daily reference equity,
	// before the regime and volatility scalers.
	OrderFrac float64 `toml:"order_frac"`
	// EquityOverride pins the sizing denominator to a fixed value for
	// EquityOverrideTTL after startup. Zero disables the override.
	EquityOverride    float64  `toml:"equity_override"`
	EquityOverrideTTL duration `toml:"equity_override_ttl"`
}

// RiskConfig holds the pre-trade validation limits.
type RiskConfig struct {
	MaxDailyLossFrac       float64  `toml:"max_daily_loss_frac"`
	MaxDailyTrades         int      `toml:"max_daily_trades"`
	MaxPerOrderFrac        float64  `toml:"max_per_order_frac"`
	MaxTotalExposureFrac   float64  `toml:"max_total_exposure_frac"`
	MaxConcurrentPositions int      `toml:"max_concurrent_positions"`
	AllowDuplicateEntries  bool     `toml:"allow_duplicate_entries"`
	FeeBufferFrac          float64  `toml:"fee_buffer_frac"`
	CooldownLosses         int      `toml:"cooldown_losses"`
	CooldownDuration       duration `toml:"cooldown_duration"`
	HighVolMultiplier      float64  `toml:"high_vol_multiplier"`
}

// OracleConfig holds the external trade-approval service settings. When
// disabled every order is approved locally.
type OracleConfig struct {
	Enabled bool     `toml:"enabled"`
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// FeedConfig holds exchange market-data endpoints and backfill depths.
type FeedConfig struct {
	RESTBaseURL       string   `toml:"rest_base_url"`
	WSBaseURL         string   `toml:"ws_base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           duration `toml:"timeout"`
	SeedDepth         int      `toml:"seed_depth"`
	IncrementDepth    int      `toml:"increment_depth"`
	BackfillInterval  duration `toml:"backfill_interval"`
}

// AnalyticsConfig holds the volatility estimator settings.
type AnalyticsConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	CandleLimit     int      `toml:"candle_limit"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RetentionConfig controls archive-then-prune housekeeping. Zero values
// disable the corresponding prune.
type RetentionConfig struct {
	Interval      duration `toml:"interval"`
	TradeDays     int      `toml:"trade_days"`
	CandleDays    int      `toml:"candle_days"`
	DailyReportAt string   `toml:"daily_report_at"` // "HH:MM" UTC, empty disables
}

// ServerConfig holds the read-only HTTP API settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   float64  `toml:"rate_limit"`
	RateBurst   int      `toml:"rate_burst"`
}

// NotifyConfig holds notification sink credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	WebhookURL        string   `toml:"webhook_url"`
	Events            []string `toml:"events"`
	QueueSize         int      `toml:"queue_size"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding ("5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sane development defaults.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Symbols:      []string{"BTCUSDT", "ETHUSDT"},
			Interval:     duration{time.Minute},
			CandleLimit:  13000,
			MaxDataAge:   duration{5 * time.Minute},
			StrategyName: "regime_adaptive",
			OrderFrac:    0.05,
		},
		Risk: RiskConfig{
			MaxDailyLossFrac:       0.05,
			MaxDailyTrades:         10,
			MaxPerOrderFrac:        0.05,
			MaxTotalExposureFrac:   0.20,
			MaxConcurrentPositions: 3,
			FeeBufferFrac:          0.005,
			CooldownLosses:         3,
			CooldownDuration:       duration{2 * time.Hour},
			HighVolMultiplier:      0.5,
		},
		Oracle: OracleConfig{
			Enabled: false,
			Timeout: duration{30 * time.Second},
		},
		Feed: FeedConfig{
			RESTBaseURL:       "https://api.binance.com",
			WSBaseURL:         "wss://stream.binance.com:9443/ws",
			RequestsPerSecond: 10,
			Burst:             5,
			Timeout:           duration{15 * time.Second},
			// Enough minute bars for the 200-hour moving average on day one;
			// the backfiller pages the exchange's capped responses.
			SeedDepth:        13000,
			IncrementDepth:   5,
			BackfillInterval: duration{time.Minute},
		},
		Analytics: AnalyticsConfig{
			RefreshInterval: duration{15 * time.Minute},
			CandleLimit:     13000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "coinpilot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "coinpilot-archive",
			ForcePathStyle: true,
		},
		Retention: RetentionConfig{
			Interval:      duration{24 * time.Hour},
			TradeDays:     90,
			CandleDays:    30,
			DailyReportAt: "00:05",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   20,
			RateBurst:   40,
		},
		Notify: NotifyConfig{
			Events:    []string{"order_filled", "position_closed", "risk_rejected", "trading_halted", "daily_report"},
			QueueSize: 256,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if len(c.Engine.Symbols) == 0 {
		errs = append(errs, "engine: symbols must not be empty")
	}
	for _, s := range c.Engine.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "engine: symbols must not contain blank entries")
			break
		}
	}
	if c.Engine.Interval.Duration <= 0 {
		errs = append(errs, "engine: interval must be > 0")
	}
	if c.Engine.CandleLimit < 200 {
		errs = append(errs, "engine: candle_limit must be >= 200 for the slow moving averages")
	}
	if c.Engine.OrderFrac <= 0 || c.Engine.OrderFrac > 1 {
		errs = append(errs, fmt.Sprintf("engine: order_frac must be in (0, 1], got %g", c.Engine.OrderFrac))
	}
	if c.Engine.EquityOverride < 0 {
		errs = append(errs, "engine: equity_override must be >= 0")
	}
	if c.Engine.EquityOverride > 0 && c.Engine.EquityOverrideTTL.Duration <= 0 {
		errs = append(errs, "engine: equity_override_ttl must be > 0 when equity_override is set")
	}

	// Risk
	if c.Risk.MaxDailyLossFrac <= 0 || c.Risk.MaxDailyLossFrac >= 1 {
		errs = append(errs, "risk: max_daily_loss_frac must be in (0, 1)")
	}
	if c.Risk.MaxDailyTrades < 1 {
		errs = append(errs, "risk: max_daily_trades must be >= 1")
	}
	if c.Risk.MaxPerOrderFrac <= 0 || c.Risk.MaxPerOrderFrac > 1 {
		errs = append(errs, "risk: max_per_order_frac must be in (0, 1]")
	}
	if c.Risk.MaxTotalExposureFrac <= 0 || c.Risk.MaxTotalExposureFrac > 1 {
		errs = append(errs, "risk: max_total_exposure_frac must be in (0, 1]")
	}
	if c.Risk.MaxConcurrentPositions < 1 {
		errs = append(errs, "risk: max_concurrent_positions must be >= 1")
	}
	if c.Risk.HighVolMultiplier <= 0 || c.Risk.HighVolMultiplier > 1 {
		errs = append(errs, "risk: high_vol_multiplier must be in (0, 1]")
	}

	// Oracle
	if c.Oracle.Enabled && c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url is required when enabled")
	}

	// Feed
	if c.Feed.RESTBaseURL == "" {
		errs = append(errs, "feed: rest_base_url must not be empty")
	}
	if c.Feed.WSBaseURL == "" {
		errs = append(errs, "feed: ws_base_url must not be empty")
	}
	if c.Feed.RequestsPerSecond <= 0 {
		errs = append(errs, "feed: requests_per_second must be > 0")
	}
	if c.Feed.SeedDepth < c.Feed.IncrementDepth {
		errs = append(errs, "feed: seed_depth must be >= increment_depth")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Retention
	if c.Retention.TradeDays < 0 || c.Retention.CandleDays < 0 {
		errs = append(errs, "retention: trade_days and candle_days must be >= 0")
	}
	if c.Retention.DailyReportAt != "" {
		if _, err := time.Parse("15:04", c.Retention.DailyReportAt); err != nil {
			errs = append(errs, fmt.Sprintf("retention: daily_report_at must be HH:MM, got %q", c.Retention.DailyReportAt))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
