package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/server/middleware"
	"github.com/alanyoungcy/arbscanner/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is requests per minute per client IP; it needs a limiter.
	RateLimit int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Quotes, Audit, Metrics and the hub are optional.
type Handlers struct {
	Health  *handler.HealthHandler
	Control *handler.ControlHandler
	Scan    *handler.ScanHandler
	Quotes  *handler.QuotesHandler
	Audit   *handler.AuditHandler
	Metrics http.Handler
}

// Server is the headless HTTP + WebSocket control API of the scanner.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limit) and attaches the
// WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
	}
}

// NewHandler builds the routed and wrapped handler without binding a port.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Runtime settings.
	mux.HandleFunc("GET /api/status", handlers.Control.GetStatus)
	mux.HandleFunc("GET /api/symbols", handlers.Control.ListSymbols)
	mux.HandleFunc("POST /api/symbols", handlers.Control.AddSymbol)
	mux.HandleFunc("DELETE /api/symbols/{symbol}", handlers.Control.RemoveSymbol)
	mux.HandleFunc("PUT /api/spread", handlers.Control.UpdateSpread)
	mux.HandleFunc("PUT /api/mode", handlers.Control.UpdateMode)
	mux.HandleFunc("POST /api/scanner/run", handlers.Control.Run)
	mux.HandleFunc("POST /api/scanner/stop", handlers.Control.Stop)

	// Scans.
	mux.HandleFunc("POST /api/scan", handlers.Scan.ScanNow)
	mux.HandleFunc("GET /api/scan/last", handlers.Scan.LastCycle)

	// Redis-backed views.
	if handlers.Quotes != nil {
		mux.HandleFunc("GET /api/quotes/{symbol}", handlers.Quotes.GetQuotes)
		mux.HandleFunc("GET /api/signals/recent", handlers.Quotes.RecentSignals)
		mux.HandleFunc("GET /api/trades/recent", handlers.Quotes.RecentTrades)
	}

	// Postgres-backed views.
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute, logger)(h)
	}

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)

	h = middleware.Logging(logger.With(slog.String("component", "http")), "/api/health", "/metrics")(h)

	return middleware.CORS(cfg.CORSOrigins)(h)
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
