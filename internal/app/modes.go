package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/notify"
	"github.com/alanyoungcy/arbscanner/internal/server"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/server/ws"
)

// FullMode runs the scan loop with execution, the HTTP API and the Telegram
// command bot until ctx is cancelled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.serve(ctx, deps)
}

// MonitorMode is FullMode without execution: signals are reported and
// published but never traded.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.serve(ctx, deps)
}

// OnceMode runs a single cycle with the configured settings, writes the cycle
// as JSON to stdout and returns.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running a single scan")
	res := deps.Scan.ScanOnce(ctx, true)

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("app: write result: %w", err)
	}
	if res.Error != "" {
		return fmt.Errorf("app: scan failed: %s", res.Error)
	}
	return nil
}

func (a *App) serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Scan.Run(ctx)
	})

	if deps.Telegram != nil && a.cfg.Notify.TelegramCommands {
		bot := notify.NewCommandBot(deps.Telegram, deps.Control, a.logger)
		g.Go(func() error {
			return bot.Run(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if s := deps.Runtime.Snapshot(); !s.Running {
		a.logger.InfoContext(ctx, "scanner idle until started (POST /api/scanner/run or /run)")
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	venues := deps.Scanner.Venues()

	pingers := map[string]handler.Pinger{}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	if deps.Postgres != nil {
		pingers["postgres"] = deps.Postgres
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(pingers, a.logger),
		Control: handler.NewControlHandler(deps.Control, a.cfg.Mode, venues, a.logger),
		Scan:    handler.NewScanHandler(deps.Scan, a.logger),
		Metrics: deps.Metrics.Handler(),
	}

	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}

	// WebSocket hub and the Redis-backed views require Redis.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		handlers.Quotes = handler.NewQuotesHandler(deps.QuoteCache, deps.SignalBus, a.logger)
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			AppMode:        a.cfg.Mode,
			Status:         deps.Control.Status,
			StartedAt:      time.Now().UTC(),
			AllowedOrigins: a.cfg.Server.CORSOrigins,
			Replay:         20,
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
