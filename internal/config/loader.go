package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COINPILOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COINPILOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStringSlice(&cfg.Engine.Symbols, "COINPILOT_ENGINE_SYMBOLS")
	setDuration(&cfg.Engine.Interval, "COINPILOT_ENGINE_INTERVAL")
	setInt(&cfg.Engine.CandleLimit, "COINPILOT_ENGINE_CANDLE_LIMIT")
	setDuration(&cfg.Engine.MaxDataAge, "COINPILOT_ENGINE_MAX_DATA_AGE")
	setStr(&cfg.Engine.StrategyName, "COINPILOT_ENGINE_STRATEGY_NAME")
	setFloat64(&cfg.Engine.OrderFrac, "COINPILOT_ENGINE_ORDER_FRAC")
	setFloat64(&cfg.Engine.EquityOverride, "COINPILOT_ENGINE_EQUITY_OVERRIDE")
	setDuration(&cfg.Engine.EquityOverrideTTL, "COINPILOT_ENGINE_EQUITY_OVERRIDE_TTL")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxDailyLossFrac, "COINPILOT_RISK_MAX_DAILY_LOSS_FRAC")
	setInt(&cfg.Risk.MaxDailyTrades, "COINPILOT_RISK_MAX_DAILY_TRADES")
	setFloat64(&cfg.Risk.MaxPerOrderFrac, "COINPILOT_RISK_MAX_PER_ORDER_FRAC")
	setFloat64(&cfg.Risk.MaxTotalExposureFrac, "COINPILOT_RISK_MAX_TOTAL_EXPOSURE_FRAC")
	setInt(&cfg.Risk.MaxConcurrentPositions, "COINPILOT_RISK_MAX_CONCURRENT_POSITIONS")
	setBool(&cfg.Risk.AllowDuplicateEntries, "COINPILOT_RISK_ALLOW_DUPLICATE_ENTRIES")
	setFloat64(&cfg.Risk.FeeBufferFrac, "COINPILOT_RISK_FEE_BUFFER_FRAC")
	setInt(&cfg.Risk.CooldownLosses, "COINPILOT_RISK_COOLDOWN_LOSSES")
	setDuration(&cfg.Risk.CooldownDuration, "COINPILOT_RISK_COOLDOWN_DURATION")
	setFloat64(&cfg.Risk.HighVolMultiplier, "COINPILOT_RISK_HIGH_VOL_MULTIPLIER")

	// ── Oracle ──
	setBool(&cfg.Oracle.Enabled, "COINPILOT_ORACLE_ENABLED")
	setStr(&cfg.Oracle.BaseURL, "COINPILOT_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.APIKey, "COINPILOT_ORACLE_API_KEY")
	setDuration(&cfg.Oracle.Timeout, "COINPILOT_ORACLE_TIMEOUT")

	// ── Feed ──
	setStr(&cfg.Feed.RESTBaseURL, "COINPILOT_FEED_REST_BASE_URL")
	setStr(&cfg.Feed.WSBaseURL, "COINPILOT_FEED_WS_BASE_URL")
	setFloat64(&cfg.Feed.RequestsPerSecond, "COINPILOT_FEED_REQUESTS_PER_SECOND")
	setInt(&cfg.Feed.Burst, "COINPILOT_FEED_BURST")
	setDuration(&cfg.Feed.Timeout, "COINPILOT_FEED_TIMEOUT")
	setInt(&cfg.Feed.SeedDepth, "COINPILOT_FEED_SEED_DEPTH")
	setInt(&cfg.Feed.IncrementDepth, "COINPILOT_FEED_INCREMENT_DEPTH")
	setDuration(&cfg.Feed.BackfillInterval, "COINPILOT_FEED_BACKFILL_INTERVAL")

	// ── Analytics ──
	setDuration(&cfg.Analytics.RefreshInterval, "COINPILOT_ANALYTICS_REFRESH_INTERVAL")
	setInt(&cfg.Analytics.CandleLimit, "COINPILOT_ANALYTICS_CANDLE_LIMIT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COINPILOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COINPILOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COINPILOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COINPILOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COINPILOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COINPILOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COINPILOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COINPILOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COINPILOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COINPILOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COINPILOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COINPILOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COINPILOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COINPILOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COINPILOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COINPILOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "COINPILOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "COINPILOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COINPILOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "COINPILOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COINPILOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COINPILOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "COINPILOT_S3_FORCE_PATH_STYLE")

	// ── Retention ──
	setDuration(&cfg.Retention.Interval, "COINPILOT_RETENTION_INTERVAL")
	setInt(&cfg.Retention.TradeDays, "COINPILOT_RETENTION_TRADE_DAYS")
	setInt(&cfg.Retention.CandleDays, "COINPILOT_RETENTION_CANDLE_DAYS")
	setStr(&cfg.Retention.DailyReportAt, "COINPILOT_RETENTION_DAILY_REPORT_AT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COINPILOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COINPILOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COINPILOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COINPILOT_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimit, "COINPILOT_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "COINPILOT_SERVER_RATE_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COINPILOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COINPILOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COINPILOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "COINPILOT_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COINPILOT_NOTIFY_EVENTS")
	setInt(&cfg.Notify.QueueSize, "COINPILOT_NOTIFY_QUEUE_SIZE")

	// ── Top-level ──
	setStr(&cfg.Mode, "COINPILOT_MODE")
	setStr(&cfg.LogLevel, "COINPILOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
