// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSCANNER_* environment variables.
type Config struct {
	Trading     TradingConfig      `toml:"trading"`
	Venues      VenuesConfig       `toml:"venues"`
	Fees        map[string]float64 `toml:"fees"`
	Credentials CredentialsConfig  `toml:"credentials"`
	Postgres    PostgresConfig     `toml:"postgres"`
	Redis       RedisConfig        `toml:"redis"`
	Kafka       KafkaConfig        `toml:"kafka"`
	Server      ServerConfig       `toml:"server"`
	Notify      NotifyConfig       `toml:"notify"`
	Mode        string             `toml:"mode"`
	LogLevel    string             `toml:"log_level"`
}

// TradingConfig seeds the runtime settings and holds the sizing knobs that
// operators do not change while the scanner runs.
type TradingConfig struct {
	Mode             string   `toml:"mode"`
	Symbols          []string `toml:"symbols"`
	MinSpreadBps     float64  `toml:"min_spread_bps"`
	SlippageBps      float64  `toml:"slippage_bps"`
	PaperNotionalUSD float64  `toml:"paper_notional_usd"`
	PollInterval     duration `toml:"poll_interval"`
	AutoStart        bool     `toml:"auto_start"`
	// MinQty and QtyStep round sizes down to venue lot rules; 0 disables.
	MinQty       float64  `toml:"min_qty"`
	QtyStep      float64  `toml:"qty_step"`
	OrderTimeout duration `toml:"order_timeout"`
	// SignalCooldown suppresses repeats of the same symbol/buy/sell signal
	// within the window; 0 disables.
	SignalCooldown duration `toml:"signal_cooldown"`
}

// VenuesConfig lists the enabled venues and their connection parameters.
type VenuesConfig struct {
	Enabled        []string        `toml:"enabled"`
	RequestTimeout duration        `toml:"request_timeout"`
	BookDepth      int             `toml:"book_depth"`
	RateLimit      RateLimitConfig `toml:"rate_limit"`
	Binance        VenueConfig     `toml:"binance"`
	Bybit          VenueConfig     `toml:"bybit"`
	Kucoin         VenueConfig     `toml:"kucoin"`
}

// VenueConfig holds one venue's endpoint and API credentials.
type VenueConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	Passphrase string `toml:"passphrase"`
}

// HasCredentials reports whether signed endpoints can be used.
func (v VenueConfig) HasCredentials() bool {
	return v.APIKey != "" && v.APISecret != ""
}

// RateLimitConfig bounds outbound requests per venue. It requires Redis.
type RateLimitConfig struct {
	Enabled bool     `toml:"enabled"`
	Limit   int      `toml:"limit"`
	Window  duration `toml:"window"`
}

// CredentialsConfig points at a sealed vault holding venue API keys.
type CredentialsConfig struct {
	VaultPath     string `toml:"vault_path"`
	VaultPassword string `toml:"vault_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	KeyPrefix    string   `toml:"key_prefix"`
	QuoteTTL     duration `toml:"quote_ttl"`
	StreamMaxLen int      `toml:"stream_max_len"`
	ScanLock     bool     `toml:"scan_lock"`
}

// KafkaConfig holds the event stream settings.
type KafkaConfig struct {
	Enabled     bool     `toml:"enabled"`
	Brokers     []string `toml:"brokers"`
	SignalTopic string   `toml:"signal_topic"`
	TradeTopic  string   `toml:"trade_topic"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramCommands  bool     `toml:"telegram_commands"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// DefaultTakerFee is applied to any venue without an explicit fee entry.
const DefaultTakerFee = 0.001

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			Mode:             "paper",
			Symbols:          []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "XRP/USDT", "DOGE/USDT"},
			MinSpreadBps:     20,
			SlippageBps:      5,
			PaperNotionalUSD: 200,
			PollInterval:     duration{2 * time.Second},
			OrderTimeout:     duration{10 * time.Second},
		},
		Venues: VenuesConfig{
			Enabled:        []string{"binance", "bybit", "kucoin"},
			RequestTimeout: duration{5 * time.Second},
			BookDepth:      5,
			RateLimit: RateLimitConfig{
				Limit:  10,
				Window: duration{time.Second},
			},
			Binance: VenueConfig{BaseURL: "https://api.binance.com"},
			Bybit:   VenueConfig{BaseURL: "https://api.bybit.com"},
			Kucoin:  VenueConfig{BaseURL: "https://api.kucoin.com"},
		},
		Fees: map[string]float64{
			"binance": DefaultTakerFee,
			"bybit":   DefaultTakerFee,
			"kucoin":  DefaultTakerFee,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscanner",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			KeyPrefix:    "arbscanner:",
			QuoteTTL:     duration{time.Minute},
			StreamMaxLen: 10000,
			ScanLock:     true,
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			SignalTopic: "arb.signals",
			TradeTopic:  "arb.trades",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   60,
		},
		Notify: NotifyConfig{
			TelegramCommands: true,
			Events:           []string{"signal", "trade", "error", "status"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true,
	"monitor": true,
	"once":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// knownVenues enumerates the venues this build has gateways for.
var knownVenues = map[string]bool{
	"binance": true,
	"bybit":   true,
	"kucoin":  true,
}

// Venue returns the connection config for a named venue.
func (c *Config) Venue(name string) (VenueConfig, bool) {
	switch strings.ToLower(name) {
	case "binance":
		return c.Venues.Binance, true
	case "bybit":
		return c.Venues.Bybit, true
	case "kucoin":
		return c.Venues.Kucoin, true
	}
	return VenueConfig{}, false
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, monitor, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading
	switch strings.ToLower(c.Trading.Mode) {
	case "paper", "live":
	default:
		errs = append(errs, fmt.Sprintf("trading: unknown mode %q (valid: paper, live)", c.Trading.Mode))
	}
	for _, s := range c.Trading.Symbols {
		if strings.Count(s, "/") != 1 || strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
			errs = append(errs, fmt.Sprintf("trading: symbol %q must be BASE/QUOTE", s))
		}
	}
	if c.Trading.SlippageBps < 0 {
		errs = append(errs, "trading: slippage_bps must be >= 0")
	}
	if c.Trading.PaperNotionalUSD <= 0 {
		errs = append(errs, "trading: paper_notional_usd must be > 0")
	}
	if c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be > 0")
	}
	if c.Trading.MinQty < 0 || c.Trading.QtyStep < 0 {
		errs = append(errs, "trading: min_qty and qty_step must be >= 0")
	}
	if c.Trading.OrderTimeout.Duration <= 0 {
		errs = append(errs, "trading: order_timeout must be > 0")
	}
	if c.Trading.SignalCooldown.Duration < 0 {
		errs = append(errs, "trading: signal_cooldown must be >= 0")
	}

	// Venues
	for _, v := range c.Venues.Enabled {
		if !knownVenues[strings.ToLower(v)] {
			errs = append(errs, fmt.Sprintf("venues: unknown venue %q (valid: binance, bybit, kucoin)", v))
		}
	}
	if c.Venues.RequestTimeout.Duration <= 0 {
		errs = append(errs, "venues: request_timeout must be > 0")
	}
	if c.Venues.BookDepth < 1 {
		errs = append(errs, "venues: book_depth must be >= 1")
	}
	if c.Venues.RateLimit.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, "venues: rate_limit requires redis.enabled")
		}
		if c.Venues.RateLimit.Limit < 1 || c.Venues.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "venues: rate_limit limit and window must be positive")
		}
	}
	if strings.ToLower(c.Trading.Mode) == "live" {
		for _, v := range c.Venues.Enabled {
			vc, _ := c.Venue(v)
			if !vc.HasCredentials() {
				errs = append(errs, fmt.Sprintf("venues: %s api_key and api_secret are required for live trading", v))
			}
			if strings.EqualFold(v, "kucoin") && vc.HasCredentials() && vc.Passphrase == "" {
				errs = append(errs, "venues: kucoin passphrase is required with api credentials")
			}
		}
	}

	// Fees
	for venue, fee := range c.Fees {
		if fee < 0 || fee >= 1 {
			errs = append(errs, fmt.Sprintf("fees: %s taker fee must be in [0, 1), got %g", venue, fee))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka: brokers must not be empty")
		}
		if c.Kafka.SignalTopic == "" || c.Kafka.TradeTopic == "" {
			errs = append(errs, "kafka: signal_topic and trade_topic must be set")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
