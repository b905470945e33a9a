package config

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Runtime is the single owner of the operator-tunable settings. Every edit
// goes through Update; readers take a Snapshot, which is a deep copy that is
// never mutated afterwards.
type Runtime struct {
	mu      sync.RWMutex
	cur     domain.Settings
	changed chan struct{}
}

// SettingsFrom seeds runtime settings from the static configuration.
func SettingsFrom(cfg *Config) domain.Settings {
	mode, ok := domain.ParseTradeMode(cfg.Trading.Mode)
	if !ok {
		mode = domain.TradeModePaper
	}
	symbols := make([]string, 0, len(cfg.Trading.Symbols))
	for _, s := range cfg.Trading.Symbols {
		symbols = appendUnique(symbols, domain.NormalizeSymbol(s))
	}
	return domain.Settings{
		Symbols:          symbols,
		MinSpreadBps:     cfg.Trading.MinSpreadBps,
		SlippageBps:      cfg.Trading.SlippageBps,
		Mode:             mode,
		PaperNotionalUSD: cfg.Trading.PaperNotionalUSD,
		PollInterval:     cfg.Trading.PollInterval.Duration,
		Running:          cfg.Trading.AutoStart,
	}
}

// NewRuntime validates initial and takes ownership of a copy of it.
func NewRuntime(initial domain.Settings) (*Runtime, error) {
	if err := ValidateSettings(initial); err != nil {
		return nil, err
	}
	s := initial.Clone()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	return &Runtime{cur: s, changed: make(chan struct{})}, nil
}

// Snapshot returns a copy of the current settings.
func (r *Runtime) Snapshot() domain.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur.Clone()
}

// Update applies fn to a copy of the current settings. The copy replaces the
// current value only if fn returns nil and the result validates. It returns
// the settings now in effect.
func (r *Runtime) Update(fn func(*domain.Settings) error) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.cur.Clone()
	if err := fn(&next); err != nil {
		return r.cur.Clone(), err
	}
	if err := ValidateSettings(next); err != nil {
		return r.cur.Clone(), err
	}
	next.UpdatedAt = time.Now().UTC()
	r.cur = next

	close(r.changed)
	r.changed = make(chan struct{})

	return next.Clone(), nil
}

// Changed returns a channel that is closed on the next successful Update.
func (r *Runtime) Changed() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changed
}

// ValidateSettings rejects settings the scan loop cannot run with. An empty
// symbol list is allowed; the scan cycle reports it.
func ValidateSettings(s domain.Settings) error {
	var errs []string
	for _, sym := range s.Symbols {
		if _, _, err := domain.ParseSymbol(sym); err != nil {
			errs = append(errs, fmt.Sprintf("symbol %q must be BASE/QUOTE", sym))
		}
	}
	if math.IsNaN(s.MinSpreadBps) || math.IsInf(s.MinSpreadBps, 0) {
		errs = append(errs, "min_spread_bps must be finite")
	}
	if s.SlippageBps < 0 || s.SlippageBps >= 10000 {
		errs = append(errs, "slippage_bps must be in [0, 10000)")
	}
	if s.Mode != domain.TradeModePaper && s.Mode != domain.TradeModeLive {
		errs = append(errs, fmt.Sprintf("unknown mode %q", s.Mode))
	}
	if !(s.PaperNotionalUSD > 0) {
		errs = append(errs, "paper_notional_usd must be > 0")
	}
	if s.PollInterval <= 0 {
		errs = append(errs, "poll_interval must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSettings, strings.Join(errs, "; "))
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
