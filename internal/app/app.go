// Package app assembles the scanner from configuration and runs it in one of
// three modes: full (scan and trade, serve the control surfaces), monitor
// (the same without trading) and once (a single cycle printed as JSON).
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/config"
)

// App owns the configuration and the cleanup of everything Wire opened.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer // once mode writes its cycle here
	closers []func()
}

// New creates an App. Nothing is connected until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// Run wires the dependencies and blocks in the configured mode until ctx is
// cancelled, or until the single cycle finishes in once mode.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	var run func(context.Context, *Dependencies) error
	switch mode {
	case "full":
		run = a.FullMode
	case "monitor":
		run = a.MonitorMode
	case "once":
		run = a.OnceMode
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	s := deps.Runtime.Snapshot()
	a.logger.InfoContext(ctx, "scanner ready",
		slog.String("mode", mode),
		slog.String("trade_mode", string(s.Mode)),
		slog.Any("venues", deps.Scanner.Venues()),
		slog.Any("symbols", s.Symbols),
		slog.Float64("min_spread_bps", s.MinSpreadBps),
		slog.Bool("redis", deps.Redis != nil),
		slog.Bool("postgres", deps.Postgres != nil),
		slog.Bool("kafka", deps.Publisher != nil),
		slog.Bool("telegram", deps.Telegram != nil),
	)
	return run(ctx, deps)
}

// Close releases everything Run opened, newest first. Calling it again is a
// no-op.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
