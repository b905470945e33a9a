package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, opens the
// credentials vault if one is configured, and returns the final Config. A
// missing file is not an error so the scanner can run from the environment
// alone. The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyLegacyEnv(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.Credentials.VaultPath != "" {
		if err := applyVault(&cfg); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// applyLegacyEnv honours the plain variable names used by earlier
// deployments of the bot. ARBSCANNER_* variables take precedence because they
// are applied afterwards.
func applyLegacyEnv(cfg *Config) {
	setStr(&cfg.Trading.Mode, "MODE")
	setStringSlice(&cfg.Trading.Symbols, "SYMBOLS")
	setFloat64(&cfg.Trading.MinSpreadBps, "MIN_SPREAD_BPS")
	setSeconds(&cfg.Trading.PollInterval, "POLL_SECONDS")
	setFloat64(&cfg.Trading.SlippageBps, "SLIPPAGE_BPS")
	setFloat64(&cfg.Trading.PaperNotionalUSD, "PAPER_NOTIONAL_USD")

	setStr(&cfg.Venues.Binance.APIKey, "BINANCE_KEY")
	setStr(&cfg.Venues.Binance.APISecret, "BINANCE_SECRET")
	setStr(&cfg.Venues.Bybit.APIKey, "BYBIT_KEY")
	setStr(&cfg.Venues.Bybit.APISecret, "BYBIT_SECRET")
	setStr(&cfg.Venues.Kucoin.APIKey, "KUCOIN_KEY")
	setStr(&cfg.Venues.Kucoin.APISecret, "KUCOIN_SECRET")
	setStr(&cfg.Venues.Kucoin.Passphrase, "KUCOIN_PASSPHRASE")

	setStr(&cfg.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
}

// applyEnvOverrides reads well-known ARBSCANNER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Trading ──
	setStr(&cfg.Trading.Mode, "ARBSCANNER_TRADING_MODE")
	setStringSlice(&cfg.Trading.Symbols, "ARBSCANNER_TRADING_SYMBOLS")
	setFloat64(&cfg.Trading.MinSpreadBps, "ARBSCANNER_TRADING_MIN_SPREAD_BPS")
	setFloat64(&cfg.Trading.SlippageBps, "ARBSCANNER_TRADING_SLIPPAGE_BPS")
	setFloat64(&cfg.Trading.PaperNotionalUSD, "ARBSCANNER_TRADING_PAPER_NOTIONAL_USD")
	setDuration(&cfg.Trading.PollInterval, "ARBSCANNER_TRADING_POLL_INTERVAL")
	setBool(&cfg.Trading.AutoStart, "ARBSCANNER_TRADING_AUTO_START")
	setFloat64(&cfg.Trading.MinQty, "ARBSCANNER_TRADING_MIN_QTY")
	setFloat64(&cfg.Trading.QtyStep, "ARBSCANNER_TRADING_QTY_STEP")
	setDuration(&cfg.Trading.OrderTimeout, "ARBSCANNER_TRADING_ORDER_TIMEOUT")
	setDuration(&cfg.Trading.SignalCooldown, "ARBSCANNER_TRADING_SIGNAL_COOLDOWN")

	// ── Venues ──
	setStringSlice(&cfg.Venues.Enabled, "ARBSCANNER_VENUES_ENABLED")
	setDuration(&cfg.Venues.RequestTimeout, "ARBSCANNER_VENUES_REQUEST_TIMEOUT")
	setInt(&cfg.Venues.BookDepth, "ARBSCANNER_VENUES_BOOK_DEPTH")
	setBool(&cfg.Venues.RateLimit.Enabled, "ARBSCANNER_VENUES_RATE_LIMIT_ENABLED")
	setInt(&cfg.Venues.RateLimit.Limit, "ARBSCANNER_VENUES_RATE_LIMIT_LIMIT")
	setDuration(&cfg.Venues.RateLimit.Window, "ARBSCANNER_VENUES_RATE_LIMIT_WINDOW")
	setVenue(&cfg.Venues.Binance, "ARBSCANNER_BINANCE")
	setVenue(&cfg.Venues.Bybit, "ARBSCANNER_BYBIT")
	setVenue(&cfg.Venues.Kucoin, "ARBSCANNER_KUCOIN")

	// ── Credentials ──
	setStr(&cfg.Credentials.VaultPath, "ARBSCANNER_VAULT_PATH")
	setStr(&cfg.Credentials.VaultPassword, "ARBSCANNER_VAULT_PASSWORD")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBSCANNER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBSCANNER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBSCANNER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSCANNER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSCANNER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSCANNER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSCANNER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSCANNER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBSCANNER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBSCANNER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBSCANNER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBSCANNER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBSCANNER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCANNER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCANNER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSCANNER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSCANNER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCANNER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "ARBSCANNER_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.QuoteTTL, "ARBSCANNER_REDIS_QUOTE_TTL")
	setInt(&cfg.Redis.StreamMaxLen, "ARBSCANNER_REDIS_STREAM_MAX_LEN")
	setBool(&cfg.Redis.ScanLock, "ARBSCANNER_REDIS_SCAN_LOCK")

	// ── Kafka ──
	setBool(&cfg.Kafka.Enabled, "ARBSCANNER_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "ARBSCANNER_KAFKA_BROKERS")
	setStr(&cfg.Kafka.SignalTopic, "ARBSCANNER_KAFKA_SIGNAL_TOPIC")
	setStr(&cfg.Kafka.TradeTopic, "ARBSCANNER_KAFKA_TRADE_TOPIC")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBSCANNER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBSCANNER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSCANNER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBSCANNER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARBSCANNER_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBSCANNER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCANNER_NOTIFY_TELEGRAM_CHAT_ID")
	setBool(&cfg.Notify.TelegramCommands, "ARBSCANNER_NOTIFY_TELEGRAM_COMMANDS")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBSCANNER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBSCANNER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBSCANNER_MODE")
	setStr(&cfg.LogLevel, "ARBSCANNER_LOG_LEVEL")
}

// applyVault fills venue credentials from the sealed vault. Values already set
// through the file or environment win over the vault.
func applyVault(cfg *Config) error {
	data, err := os.ReadFile(cfg.Credentials.VaultPath)
	if err != nil {
		return fmt.Errorf("config: read vault: %w", err)
	}
	creds, err := crypto.OpenVault(data, cfg.Credentials.VaultPassword)
	if err != nil {
		return fmt.Errorf("config: open vault: %w", err)
	}
	for name, c := range creds {
		var dst *VenueConfig
		switch strings.ToLower(name) {
		case "binance":
			dst = &cfg.Venues.Binance
		case "bybit":
			dst = &cfg.Venues.Bybit
		case "kucoin":
			dst = &cfg.Venues.Kucoin
		default:
			continue
		}
		fillEmpty(&dst.APIKey, c.APIKey)
		fillEmpty(&dst.APISecret, c.APISecret)
		fillEmpty(&dst.Passphrase, c.Passphrase)
	}
	return nil
}

func fillEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
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

// setSeconds parses a plain number of (possibly fractional) seconds.
func setSeconds(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			dst.Duration = time.Duration(f * float64(time.Second))
		}
	}
}

func setVenue(dst *VenueConfig, prefix string) {
	setStr(&dst.BaseURL, prefix+"_BASE_URL")
	setStr(&dst.APIKey, prefix+"_API_KEY")
	setStr(&dst.APISecret, prefix+"_API_SECRET")
	setStr(&dst.Passphrase, prefix+"_PASSPHRASE")
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
