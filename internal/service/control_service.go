package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/notify"
)

// ControlService is the only writer of the runtime settings. Every edit goes
// through config.Runtime.Update; the result is persisted, audited and
// announced on the bus. Persistence failures are logged and never undo an
// edit that already took effect.
type ControlService struct {
	rt     *config.Runtime
	store  domain.SettingsStore // optional
	audit  domain.AuditStore    // optional
	bus    domain.SignalBus     // optional
	logger *slog.Logger

	// saveMu orders writes to store; each write takes a fresh snapshot so
	// the last one to land always holds every applied edit.
	saveMu sync.Mutex
}

// NewControlService creates a ControlService. store, audit and bus may be nil.
func NewControlService(
	rt *config.Runtime,
	store domain.SettingsStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ControlService {
	return &ControlService{
		rt:     rt,
		store:  store,
		audit:  audit,
		bus:    bus,
		logger: logger,
	}
}

// Restore replaces the runtime settings with the last persisted copy, if
// any. The persisted Running flag is ignored so a restart never resumes
// scanning on its own.
func (s *ControlService) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	saved, err := s.store.LoadSettings(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("control_service: load settings: %w", err)
	}
	_, err = s.rt.Update(func(cur *domain.Settings) error {
		running := cur.Running
		*cur = saved.Clone()
		cur.Running = running
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("control_service: restore settings: %w", err)
	}
	s.logger.InfoContext(ctx, "control_service: settings restored",
		slog.Int("symbols", len(saved.Symbols)),
		slog.String("mode", string(saved.Mode)),
	)
	return true, nil
}

// Status returns a snapshot of the current settings.
func (s *ControlService) Status() domain.Settings {
	return s.rt.Snapshot()
}

// AddSymbol appends symbol if it is not already scanned.
func (s *ControlService) AddSymbol(ctx context.Context, symbol string) (domain.Settings, error) {
	sym := domain.NormalizeSymbol(symbol)
	if _, _, err := domain.ParseSymbol(sym); err != nil {
		return s.rt.Snapshot(), err
	}
	return s.apply(ctx, "symbol_added", map[string]any{"symbol": sym}, func(cur *domain.Settings) error {
		if !slices.Contains(cur.Symbols, sym) {
			cur.Symbols = append(cur.Symbols, sym)
		}
		return nil
	})
}

// RemoveSymbol drops symbol. Removing an unknown symbol is a no-op.
func (s *ControlService) RemoveSymbol(ctx context.Context, symbol string) (domain.Settings, error) {
	sym := domain.NormalizeSymbol(symbol)
	return s.apply(ctx, "symbol_removed", map[string]any{"symbol": sym}, func(cur *domain.Settings) error {
		cur.Symbols = slices.DeleteFunc(cur.Symbols, func(v string) bool { return v == sym })
		return nil
	})
}

// SetSymbols replaces the symbol list.
func (s *ControlService) SetSymbols(ctx context.Context, symbols []string) (domain.Settings, error) {
	list := make([]string, 0, len(symbols))
	for _, v := range symbols {
		v = domain.NormalizeSymbol(v)
		if v != "" && !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return s.apply(ctx, "symbols_set", map[string]any{"symbols": list}, func(cur *domain.Settings) error {
		cur.Symbols = list
		return nil
	})
}

// SetMinSpread changes the acceptance threshold in bps.
func (s *ControlService) SetMinSpread(ctx context.Context, bps float64) (domain.Settings, error) {
	return s.apply(ctx, "min_spread_set", map[string]any{"min_spread_bps": bps}, func(cur *domain.Settings) error {
		cur.MinSpreadBps = bps
		return nil
	})
}

// SetSlippage changes the per-leg slippage allowance in bps.
func (s *ControlService) SetSlippage(ctx context.Context, bps float64) (domain.Settings, error) {
	return s.apply(ctx, "slippage_set", map[string]any{"slippage_bps": bps}, func(cur *domain.Settings) error {
		cur.SlippageBps = bps
		return nil
	})
}

// SetPaperNotional changes the notional used to size paper trades.
func (s *ControlService) SetPaperNotional(ctx context.Context, usd float64) (domain.Settings, error) {
	return s.apply(ctx, "paper_notional_set", map[string]any{"paper_notional_usd": usd}, func(cur *domain.Settings) error {
		cur.PaperNotionalUSD = usd
		return nil
	})
}

// SetMode switches between paper and live execution.
func (s *ControlService) SetMode(ctx context.Context, mode string) (domain.Settings, error) {
	m, ok := domain.ParseTradeMode(mode)
	if !ok {
		return s.rt.Snapshot(), fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidSettings, mode)
	}
	return s.apply(ctx, "mode_set", map[string]any{"mode": string(m)}, func(cur *domain.Settings) error {
		cur.Mode = m
		return nil
	})
}

// Start turns scanning on.
func (s *ControlService) Start(ctx context.Context) (domain.Settings, error) {
	return s.apply(ctx, "scanner_started", nil, func(cur *domain.Settings) error {
		cur.Running = true
		return nil
	})
}

// Stop turns scanning off. A cycle already in flight finishes.
func (s *ControlService) Stop(ctx context.Context) (domain.Settings, error) {
	return s.apply(ctx, "scanner_stopped", nil, func(cur *domain.Settings) error {
		cur.Running = false
		return nil
	})
}

func (s *ControlService) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.store.SaveSettings(ctx, s.rt.Snapshot())
}

func (s *ControlService) apply(ctx context.Context, event string, detail map[string]any, fn func(*domain.Settings) error) (domain.Settings, error) {
	next, err := s.rt.Update(fn)
	if err != nil {
		s.logger.WarnContext(ctx, "control_service: edit rejected",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return next, err
	}

	s.logger.InfoContext(ctx, "control_service: settings changed", slog.String("event", event))

	if s.store != nil {
		if err := s.persist(ctx); err != nil {
			s.logger.WarnContext(ctx, "control_service: persist settings failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "control_service: audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{"event": event, "settings": next})
		if err := s.bus.Publish(ctx, domain.ChannelStatus, payload); err != nil {
			s.logger.WarnContext(ctx, "control_service: publish status failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	return next, nil
}

var _ notify.Controller = (*ControlService)(nil)
