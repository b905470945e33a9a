package arbitrage

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// SymbolScan is what one symbol produced in a cycle.
type SymbolScan struct {
	Symbol   string
	Outcomes []domain.QuoteOutcome
	Quotes   map[string]domain.Quote
	Signals  []domain.Signal
}

// ScanReport collects a whole cycle.
type ScanReport struct {
	Symbols []SymbolScan
}

// Signals flattens the report's signals in symbol order.
func (r ScanReport) Signals() []domain.Signal {
	var out []domain.Signal
	for _, s := range r.Symbols {
		out = append(out, s.Signals...)
	}
	return out
}

// Scanner runs one scan cycle: aggregate, then evaluate, symbol by symbol.
type Scanner struct {
	agg    *Aggregator
	eval   *Evaluator
	logger *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(agg *Aggregator, eval *Evaluator, logger *slog.Logger) *Scanner {
	return &Scanner{
		agg:    agg,
		eval:   eval,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// Venues returns the configured venue names.
func (s *Scanner) Venues() []string {
	return s.agg.Venues()
}

// ScanOnce scans every symbol in settings and returns the accepted signals.
func (s *Scanner) ScanOnce(ctx context.Context, settings domain.Settings) ([]domain.Signal, error) {
	rep, err := s.Scan(ctx, settings)
	if err != nil {
		return nil, err
	}
	return rep.Signals(), nil
}

// Scan is ScanOnce with the per-symbol detail kept. Each symbol's pairs are
// all evaluated against the one quote set fetched for it. The only errors are
// configuration errors and context cancellation between symbols.
func (s *Scanner) Scan(ctx context.Context, settings domain.Settings) (ScanReport, error) {
	if len(s.agg.venues) == 0 {
		return ScanReport{}, domain.ErrNoVenues
	}
	if len(settings.Symbols) == 0 {
		return ScanReport{}, domain.ErrNoSymbols
	}

	params := EvalParams{MinSpreadBps: settings.MinSpreadBps, SlippageBps: settings.SlippageBps}
	rep := ScanReport{Symbols: make([]SymbolScan, 0, len(settings.Symbols))}

	for _, symbol := range settings.Symbols {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		outcomes := s.agg.FetchOutcomes(ctx, symbol)
		quotes := QuotesOf(outcomes)
		signals := s.eval.Evaluate(symbol, quotes, params)

		s.logger.DebugContext(ctx, "symbol scanned",
			slog.String("symbol", symbol),
			slog.Int("venues_quoted", len(quotes)),
			slog.Int("signals", len(signals)),
		)
		rep.Symbols = append(rep.Symbols, SymbolScan{
			Symbol:   symbol,
			Outcomes: outcomes,
			Quotes:   quotes,
			Signals:  signals,
		})
	}
	return rep, nil
}
