package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/executor"
	"github.com/alanyoungcy/arbscanner/internal/metrics"
	"github.com/alanyoungcy/arbscanner/internal/notify"
)

// ScanConfig holds the scan loop knobs fixed at startup.
type ScanConfig struct {
	// Execute is false in monitor mode: signals are reported, never traded.
	Execute bool
	// LockKey and LockTTL guard each cycle when a LockManager is set.
	LockKey string
	LockTTL time.Duration
	// Cooldown suppresses a repeated symbol/venue pair signal; 0 disables.
	// On an executing service only executing cycles count toward it.
	Cooldown time.Duration
}

// ScanDeps groups the optional collaborators of a ScanService. Any nil field
// disables that side effect.
type ScanDeps struct {
	Notifier  *notify.Notifier
	Bus       domain.SignalBus
	Publisher domain.EventPublisher
	Quotes    domain.QuoteCache
	Lock      domain.LockManager
	Metrics   *metrics.Metrics
}

// CycleResult is what one scan cycle did.
type CycleResult struct {
	StartedAt  time.Time              `json:"started_at"`
	Duration   time.Duration          `json:"duration"`
	Quotes     map[string][]QuoteView `json:"quotes"`
	Signals    []domain.Signal        `json:"signals"`
	Suppressed int                    `json:"suppressed"`
	Trades     []domain.TradeResult   `json:"trades"`
	Skipped    bool                   `json:"skipped,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// QuoteView is one venue's outcome as reported by a cycle.
type QuoteView struct {
	Venue  string             `json:"venue"`
	Status domain.QuoteStatus `json:"status"`
	Bid    float64            `json:"bid,omitempty"`
	Ask    float64            `json:"ask,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// ScanService drives the periodic scan: snapshot settings, scan, then for
// each accepted signal notify, publish and execute.
type ScanService struct {
	rt      *config.Runtime
	scanner *arbitrage.Scanner
	exec    *executor.Executor
	dedup   *executor.Dedup
	deps    ScanDeps
	cfg     ScanConfig
	logger  *slog.Logger

	mu   sync.RWMutex
	last *CycleResult
}

// NewScanService creates a ScanService.
func NewScanService(
	rt *config.Runtime,
	scanner *arbitrage.Scanner,
	exec *executor.Executor,
	deps ScanDeps,
	cfg ScanConfig,
	logger *slog.Logger,
) *ScanService {
	if cfg.LockKey == "" {
		cfg.LockKey = "scan"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &ScanService{
		rt:      rt,
		scanner: scanner,
		exec:    exec,
		dedup:   executor.NewDedup(cfg.Cooldown),
		deps:    deps,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "scan_service")),
	}
}

// Run loops until ctx is cancelled. Cycles only run while the settings say
// Running; a settings change wakes the loop early. Cycle errors are logged
// and notified and the loop carries on.
func (s *ScanService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scan loop started", slog.Bool("execute", s.cfg.Execute))
	for {
		changed := s.rt.Changed()
		settings := s.rt.Snapshot()
		s.deps.Metrics.SetRunning(settings.Running)

		var (
			wait  <-chan time.Time
			timer *time.Timer
		)
		if settings.Running {
			s.Cycle(ctx, settings, s.cfg.Execute)
			timer = time.NewTimer(settings.PollInterval)
			wait = timer.C
		}

		// A settings change wakes the loop so edits apply on the next cycle
		// without waiting out the poll interval.
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scan loop stopped")
			return nil
		case <-wait:
		case <-changed:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// ScanOnce runs a single cycle with the current settings regardless of the
// Running flag. execute is ANDed with the service's own Execute setting.
func (s *ScanService) ScanOnce(ctx context.Context, execute bool) CycleResult {
	return s.Cycle(ctx, s.rt.Snapshot(), execute && s.cfg.Execute)
}

// Last returns the most recent cycle, if any.
func (s *ScanService) Last() (CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CycleResult{}, false
	}
	return *s.last, true
}

// Cycle runs one scan against settings.
func (s *ScanService) Cycle(ctx context.Context, settings domain.Settings, execute bool) (res CycleResult) {
	res = CycleResult{StartedAt: time.Now().UTC(), Quotes: map[string][]QuoteView{}}
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		s.mu.Lock()
		s.last = &res
		s.mu.Unlock()
	}()

	if s.deps.Lock != nil {
		unlock, err := s.deps.Lock.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.DebugContext(ctx, "another scanner holds the lock, skipping cycle")
			res.Skipped = true
			s.deps.Metrics.ObserveCycle("skipped", 0)
			return res
		}
		if err != nil {
			s.logger.WarnContext(ctx, "scan lock failed, scanning anyway", slog.String("error", err.Error()))
		} else {
			defer unlock()
		}
	}

	report, err := s.scanner.Scan(ctx, settings)
	for _, sym := range report.Symbols {
		res.Quotes[sym.Symbol] = quoteViews(sym.Outcomes)
		s.deps.Metrics.ObserveOutcomes(sym.Outcomes)
		s.cacheQuotes(ctx, sym.Symbol, sym.Quotes)
	}
	if err != nil {
		res.Error = err.Error()
		if ctx.Err() == nil {
			s.logger.WarnContext(ctx, "scan cycle failed", slog.String("error", err.Error()))
			s.notify(ctx, notify.EventError, "Error", "Error in loop: "+err.Error())
		}
		s.deps.Metrics.ObserveCycle("error", time.Since(res.StartedAt))
		return res
	}

	// A preview scan on an executing service neither consults nor records
	// the cooldown, so it cannot keep the loop from trading a signal.
	tracked := execute || !s.cfg.Execute
	s.dedup.Cleanup()
	for _, sig := range report.Signals() {
		if tracked && s.dedup.IsDuplicate(sig.Key()) {
			res.Suppressed++
			continue
		}
		res.Signals = append(res.Signals, sig)
		s.handleSignal(ctx, sig)

		if !execute {
			continue
		}
		trade := s.exec.Execute(ctx, sig, executor.Request{
			Mode:          settings.Mode,
			PaperNotional: settings.PaperNotionalUSD,
		})
		res.Trades = append(res.Trades, trade)
		s.handleTrade(ctx, trade)
	}

	s.logger.InfoContext(ctx, "scan cycle complete",
		slog.Int("symbols", len(report.Symbols)),
		slog.Int("signals", len(res.Signals)),
		slog.Int("suppressed", res.Suppressed),
		slog.Int("trades", len(res.Trades)),
		slog.Duration("elapsed", time.Since(res.StartedAt)),
	)
	s.deps.Metrics.ObserveCycle("ok", time.Since(res.StartedAt))
	return res
}

func (s *ScanService) handleSignal(ctx context.Context, sig domain.Signal) {
	s.logger.InfoContext(ctx, "signal",
		slog.String("symbol", sig.Symbol),
		slog.String("buy_venue", sig.BuyVenue),
		slog.String("sell_venue", sig.SellVenue),
		slog.Float64("net_spread_bps", sig.NetSpreadBps),
	)
	s.deps.Metrics.ObserveSignal(sig)

	if s.deps.Notifier.Enabled(notify.EventSignal) {
		title, body := notify.FormatSignal(sig)
		s.notify(ctx, notify.EventSignal, title, body)
	}
	s.broadcast(ctx, domain.ChannelSignal, domain.StreamSignals, sig)
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishSignal(ctx, sig); err != nil {
			s.logger.WarnContext(ctx, "publish signal failed", slog.String("error", err.Error()))
		}
	}
}

func (s *ScanService) handleTrade(ctx context.Context, trade domain.TradeResult) {
	s.deps.Metrics.ObserveTrade(trade)
	if !trade.OK() {
		s.logger.WarnContext(ctx, "execution failed",
			slog.String("symbol", trade.Symbol),
			slog.String("error_kind", string(trade.ErrorKind)),
			slog.String("detail", trade.Detail),
		)
	}

	if s.deps.Notifier.Enabled(notify.EventTrade) {
		title, body := notify.FormatTrade(trade)
		s.notify(ctx, notify.EventTrade, title, body)
	}
	s.broadcast(ctx, domain.ChannelTrade, domain.StreamTrades, trade)
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishTrade(ctx, trade); err != nil {
			s.logger.WarnContext(ctx, "publish trade failed", slog.String("error", err.Error()))
		}
	}
}

func (s *ScanService) notify(ctx context.Context, event, title, body string) {
	if err := s.deps.Notifier.Notify(ctx, event, title, body); err != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (s *ScanService) broadcast(ctx context.Context, channel, stream string, v any) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "bus publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
	if err := s.deps.Bus.StreamAppend(ctx, stream, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed", slog.String("stream", stream), slog.String("error", err.Error()))
	}
}

func (s *ScanService) cacheQuotes(ctx context.Context, symbol string, quotes map[string]domain.Quote) {
	if s.deps.Quotes == nil || len(quotes) == 0 {
		return
	}
	if err := s.deps.Quotes.SetQuotes(ctx, symbol, quotes); err != nil {
		s.logger.WarnContext(ctx, "cache quotes failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
}

func quoteViews(outcomes []domain.QuoteOutcome) []QuoteView {
	out := make([]QuoteView, 0, len(outcomes))
	for _, o := range outcomes {
		v := QuoteView{Venue: o.Venue, Status: o.Status}
		if o.Usable() {
			v.Bid, v.Ask = o.Quote.Bid, o.Quote.Ask
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		out = append(out, v)
	}
	return out
}
