package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "monitor"

[engine]
symbols = ["SOLUSDT"]
interval = "30s"
order_frac = 0.02

[risk]
max_daily_trades = 20

[retention]
daily_report_at = "06:30"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, 30*time.Second, cfg.Engine.Interval.Duration)
	assert.Equal(t, 0.02, cfg.Engine.OrderFrac)
	assert.Equal(t, 20, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, "06:30", cfg.Retention.DailyReportAt)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.05, cfg.Risk.MaxDailyLossFrac)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COINPILOT_ENGINE_SYMBOLS", "BTCUSDT, ETHUSDT ,SOLUSDT")
	t.Setenv("COINPILOT_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("COINPILOT_RISK_MAX_PER_ORDER_FRAC", "0.03")
	t.Setenv("COINPILOT_SERVER_ENABLED", "false")
	t.Setenv("COINPILOT_ENGINE_INTERVAL", "2m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 0.03, cfg.Risk.MaxPerOrderFrac)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Engine.Interval.Duration)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Engine.Symbols = nil
	cfg.Engine.OrderFrac = 1.5
	cfg.Risk.MaxDailyLossFrac = 0
	cfg.Retention.DailyReportAt = "25:99"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "symbols must not be empty")
	assert.Contains(t, err.Error(), "order_frac")
	assert.Contains(t, err.Error(), "max_daily_loss_frac")
	assert.Contains(t, err.Error(), "daily_report_at")
}

func TestValidateOracleRequiresURL(t *testing.T) {
	cfg := Defaults()
	cfg.Oracle.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle: base_url")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "secret"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Redis.Password = ""

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "", red.Redis.Password)

	// Original untouched.
	assert.Equal(t, "secret", cfg.Postgres.Password)
}
