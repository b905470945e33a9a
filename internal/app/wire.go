package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	"github.com/alanyoungcy/arbscanner/internal/cache/redis"
	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/executor"
	"github.com/alanyoungcy/arbscanner/internal/metrics"
	"github.com/alanyoungcy/arbscanner/internal/notify"
	"github.com/alanyoungcy/arbscanner/internal/platform"
	"github.com/alanyoungcy/arbscanner/internal/platform/binance"
	"github.com/alanyoungcy/arbscanner/internal/platform/bybit"
	"github.com/alanyoungcy/arbscanner/internal/platform/kucoin"
	"github.com/alanyoungcy/arbscanner/internal/service"
	"github.com/alanyoungcy/arbscanner/internal/store/postgres"
	"github.com/alanyoungcy/arbscanner/internal/stream/kafka"
)

// Dependencies bundles every dependency that the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function. Optional backends are nil when disabled.
type Dependencies struct {
	Runtime  *config.Runtime
	Gateways []domain.Gateway
	Scanner  *arbitrage.Scanner
	Executor *executor.Executor
	Control  *service.ControlService
	Scan     *service.ScanService

	// Backends
	Postgres    *postgres.Client
	Audit       domain.AuditStore
	Redis       *redis.Client
	SignalBus   *redis.SignalBus
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	Publisher   domain.EventPublisher

	// Observability and notifications
	Metrics  *metrics.Metrics
	Notifier *notify.Notifier
	Telegram *notify.TelegramSender
}

// executes reports whether signals found in mode are traded.
func executes(mode string) bool {
	return strings.ToLower(mode) != "monitor"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(format string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf(format, err)
	}

	deps := &Dependencies{Metrics: metrics.New()}

	rt, err := config.NewRuntime(config.SettingsFrom(cfg))
	if err != nil {
		return fail("wire: runtime settings: %w", err)
	}
	deps.Runtime = rt

	// --- PostgreSQL (settings persistence and audit trail) ---
	var (
		settingsStore domain.SettingsStore
		auditStore    domain.AuditStore
	)
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("wire: postgres migrations: %w", err)
			}
		}
		deps.Postgres = pgClient
		settingsStore = postgres.NewSettingsStore(pgClient)
		auditStore = postgres.NewAuditStore(pgClient)
		deps.Audit = auditStore
	}

	// --- Redis (quote cache, venue rate limits, scan lock, event bus) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Prefix:     cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Redis.QuoteTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		if cfg.Redis.ScanLock {
			deps.LockManager = redis.NewLockManager(redisClient)
		}
	}

	// --- Kafka (signal and trade event stream) ---
	if cfg.Kafka.Enabled {
		pub := kafka.NewPublisher(kafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			SignalTopic: cfg.Kafka.SignalTopic,
			TradeTopic:  cfg.Kafka.TradeTopic,
		})
		closers = append(closers, func() { _ = pub.Close() })
		deps.Publisher = pub
	}

	// --- Venues ---
	gateways, err := buildGateways(cfg, deps.RateLimiter)
	if err != nil {
		return fail("wire: venues: %w", err)
	}
	deps.Gateways = gateways

	deps.Scanner = arbitrage.NewScanner(
		arbitrage.NewAggregator(gateways, arbitrage.AggregatorConfig{
			RequestTimeout: cfg.Venues.RequestTimeout.Duration,
			BookDepth:      cfg.Venues.BookDepth,
		}, logger),
		arbitrage.NewEvaluator(arbitrage.NewFeeSchedule(cfg.Fees, config.DefaultTakerFee)),
		logger,
	)
	deps.Executor = executor.NewExecutor(gateways, executor.Config{
		MinQty:         cfg.Trading.MinQty,
		QtyStep:        cfg.Trading.QtyStep,
		BalanceTimeout: cfg.Venues.RequestTimeout.Duration,
		OrderTimeout:   cfg.Trading.OrderTimeout.Duration,
	}, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		deps.Telegram = notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if cfg.Notify.TelegramChatID != "" {
			senders = append(senders, deps.Telegram)
		}
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	// A nil *redis.SignalBus must stay a nil interface.
	var bus domain.SignalBus
	if deps.SignalBus != nil {
		bus = deps.SignalBus
	}
	deps.Control = service.NewControlService(rt, settingsStore, auditStore, bus, logger)
	if _, err := deps.Control.Restore(ctx); err != nil {
		logger.WarnContext(ctx, "wire: persisted settings ignored", slog.String("error", err.Error()))
	}

	deps.Scan = service.NewScanService(rt, deps.Scanner, deps.Executor, service.ScanDeps{
		Notifier:  deps.Notifier,
		Bus:       bus,
		Publisher: deps.Publisher,
		Quotes:    deps.QuoteCache,
		Lock:      deps.LockManager,
		Metrics:   deps.Metrics,
	}, service.ScanConfig{
		Execute:  executes(cfg.Mode),
		LockKey:  "scan",
		LockTTL:  max(30*time.Second, 3*cfg.Trading.PollInterval.Duration),
		Cooldown: cfg.Trading.SignalCooldown.Duration,
	}, logger)

	return deps, cleanup, nil
}

// buildGateways creates one gateway per enabled venue, wrapped with the
// shared rate limiter when one is configured.
func buildGateways(cfg *config.Config, limiter domain.RateLimiter) ([]domain.Gateway, error) {
	gateways := make([]domain.Gateway, 0, len(cfg.Venues.Enabled))
	for _, name := range cfg.Venues.Enabled {
		vc, ok := cfg.Venue(name)
		if !ok {
			return nil, fmt.Errorf("unknown venue %q", name)
		}
		auth := crypto.HMACAuth{Key: vc.APIKey, Secret: vc.APISecret, Passphrase: vc.Passphrase}

		var gw domain.Gateway
		switch strings.ToLower(name) {
		case binance.Name:
			gw = binance.NewClient(vc.BaseURL, auth)
		case bybit.Name:
			gw = bybit.NewClient(vc.BaseURL, auth)
		case kucoin.Name:
			gw = kucoin.NewClient(vc.BaseURL, auth)
		}

		if limiter != nil && cfg.Venues.RateLimit.Enabled {
			gw = platform.NewRateLimited(gw, limiter, cfg.Venues.RateLimit.Limit, cfg.Venues.RateLimit.Window.Duration)
		}
		gateways = append(gateways, gw)
	}
	return gateways, nil
}
