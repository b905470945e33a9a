// Command arbscanner is the entry point for the cross-exchange arbitrage
// scanner. It loads configuration, validates it, sets up signal handling, and
// starts the application in the configured mode.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/arbscanner/internal/app"
	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/crypto"
)

const vaultPasswordEnv = "ARBSCANNER_VAULT_PASSWORD"

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	sealIn := flag.String("seal", "", "seal a plaintext credentials JSON file into a vault and exit")
	sealOut := flag.String("out", "vault.json", "output path for -seal")
	flag.Parse()

	if *sealIn != "" {
		if err := sealVault(*sealIn, *sealOut, os.Getenv(vaultPasswordEnv)); err != nil {
			fmt.Fprintf(os.Stderr, "seal: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "vault written to %s\n", *sealOut)
		return
	}

	logger := newLogger(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// In once mode stdout carries the cycle result.
	var logOut io.Writer = os.Stdout
	if cfg.Mode == "once" {
		logOut = os.Stderr
	}
	logger = newLogger(logOut, parseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbscanner starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("arbscanner stopped")
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sealVault reads {"binance": {"api_key": ..., "api_secret": ...}, ...} from
// in and writes the encrypted vault to out.
func sealVault(in, out, password string) error {
	if password == "" {
		return fmt.Errorf("%s is not set", vaultPasswordEnv)
	}
	raw, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	var creds map[string]crypto.VenueCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("parse %s: %w", in, err)
	}
	blob, err := crypto.SealVault(creds, password)
	if err != nil {
		return err
	}
	return os.WriteFile(out, blob, 0o600)
}
