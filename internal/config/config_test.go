package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Venues.RequestTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.Trading.PollInterval.Duration)
	assert.Equal(t, 20.0, cfg.Trading.MinSpreadBps)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Trading.Symbols = []string{"BTCUSDT"}
	cfg.Venues.Enabled = []string{"ftx"}
	cfg.Fees["binance"] = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "turbo"`)
	assert.Contains(t, msg, `symbol "BTCUSDT"`)
	assert.Contains(t, msg, `unknown venue "ftx"`)
	assert.Contains(t, msg, "binance taker fee")
}

func TestValidate_LiveNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Mode = "live"
	cfg.Venues.Enabled = []string{"binance", "kucoin"}
	cfg.Venues.Binance.APIKey, cfg.Venues.Binance.APISecret = "k", "s"
	cfg.Venues.Kucoin.APIKey, cfg.Venues.Kucoin.APISecret = "k", "s"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kucoin passphrase")
	assert.NotContains(t, err.Error(), "binance api_key")

	cfg.Venues.Kucoin.Passphrase = "p"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RateLimitNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Venues.RateLimit.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "rate_limit requires redis")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Trading.Symbols, cfg.Trading.Symbols)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"

[trading]
symbols = ["BTC/USDT"]
min_spread_bps = 15
poll_interval = "3s"

[venues]
enabled = ["binance", "bybit"]
request_timeout = "2s"
`), 0o600))

	t.Setenv("MIN_SPREAD_BPS", "30")
	t.Setenv("POLL_SECONDS", "1.5")
	t.Setenv("ARBSCANNER_TRADING_MIN_SPREAD_BPS", "40")
	t.Setenv("SYMBOLS", "ETH/USDT, SOL/USDT")
	t.Setenv("BINANCE_KEY", "legacy-key")
	t.Setenv("ARBSCANNER_TRADING_SIGNAL_COOLDOWN", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 40.0, cfg.Trading.MinSpreadBps, "prefixed variable wins over legacy name")
	assert.Equal(t, 1500*time.Millisecond, cfg.Trading.PollInterval.Duration)
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 2*time.Second, cfg.Venues.RequestTimeout.Duration)
	assert.Equal(t, "legacy-key", cfg.Venues.Binance.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Trading.SignalCooldown.Duration)
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[trading\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_VaultFillsMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	blob, err := crypto.SealVault(map[string]crypto.VenueCredentials{
		"binance": {APIKey: "vault-key", APISecret: "vault-secret"},
		"kucoin":  {APIKey: "kk", APISecret: "ks", Passphrase: "kp"},
	}, "pw")
	require.NoError(t, err)
	vault := filepath.Join(dir, "vault.json")
	require.NoError(t, os.WriteFile(vault, blob, 0o600))

	t.Setenv("ARBSCANNER_VAULT_PATH", vault)
	t.Setenv("ARBSCANNER_VAULT_PASSWORD", "pw")
	t.Setenv("ARBSCANNER_BINANCE_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Venues.Binance.APIKey)
	assert.Equal(t, "vault-secret", cfg.Venues.Binance.APISecret)
	assert.Equal(t, "kp", cfg.Venues.Kucoin.Passphrase)
}

func TestLoad_VaultWrongPassword(t *testing.T) {
	blob, err := crypto.SealVault(map[string]crypto.VenueCredentials{"bybit": {APIKey: "a", APISecret: "b"}}, "right")
	require.NoError(t, err)
	vault := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, os.WriteFile(vault, blob, 0o600))

	t.Setenv("ARBSCANNER_VAULT_PATH", vault)
	t.Setenv("ARBSCANNER_VAULT_PASSWORD", "wrong")

	_, err = Load("")
	assert.ErrorContains(t, err, "open vault")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Venues.Bybit.APISecret = "bybit-secret-value"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Postgres.DSN = "postgres://u:p@h/db"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Venues.Bybit.APISecret)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Empty(t, out.Venues.Bybit.APIKey, "empty values stay empty")

	out.Trading.Symbols[0] = "X/Y"
	out.Fees["binance"] = 0.5
	assert.Equal(t, "BTC/USDT", cfg.Trading.Symbols[0])
	assert.Equal(t, DefaultTakerFee, cfg.Fees["binance"])
	assert.Equal(t, "bybit-secret-value", cfg.Venues.Bybit.APISecret)
}
