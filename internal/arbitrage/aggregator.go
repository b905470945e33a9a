package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Aggregation defaults.
const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultBookDepth      = 5
)

// AggregatorConfig bounds each venue request.
type AggregatorConfig struct {
	// RequestTimeout applies to each gateway call on its own, so one venue
	// costs at most two timeouts (book, then ticker).
	RequestTimeout time.Duration
	BookDepth      int
}

// Aggregator fetches a top-of-book quote for one symbol from every venue in
// parallel.
type Aggregator struct {
	venues []domain.Gateway
	cfg    AggregatorConfig
	logger *slog.Logger
}

// NewAggregator creates an Aggregator over venues. Zero config values fall
// back to the package defaults.
func NewAggregator(venues []domain.Gateway, cfg AggregatorConfig, logger *slog.Logger) *Aggregator {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = DefaultBookDepth
	}
	return &Aggregator{
		venues: venues,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "quote_aggregator")),
	}
}

// Venues returns the names of the configured venues.
func (a *Aggregator) Venues() []string {
	names := make([]string, len(a.venues))
	for i, v := range a.venues {
		names[i] = v.Name()
	}
	return names
}

// FetchOutcomes asks every venue for symbol concurrently and returns one
// outcome per venue, sorted by venue name. It never fails as a whole.
func (a *Aggregator) FetchOutcomes(ctx context.Context, symbol string) []domain.QuoteOutcome {
	outcomes := make([]domain.QuoteOutcome, len(a.venues))

	var g errgroup.Group
	for i, gw := range a.venues {
		g.Go(func() error {
			outcomes[i] = a.fetchOne(ctx, gw, symbol)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Venue < outcomes[j].Venue })
	return outcomes
}

// FetchBestQuotes returns the venues that produced a usable quote for symbol.
// Venues that failed are simply absent.
func (a *Aggregator) FetchBestQuotes(ctx context.Context, symbol string) map[string]domain.Quote {
	return QuotesOf(a.FetchOutcomes(ctx, symbol))
}

// QuotesOf keeps the usable outcomes, keyed by venue.
func QuotesOf(outcomes []domain.QuoteOutcome) map[string]domain.Quote {
	quotes := make(map[string]domain.Quote, len(outcomes))
	for _, o := range outcomes {
		if o.Usable() {
			quotes[o.Venue] = o.Quote
		}
	}
	return quotes
}

// fetchOne tries the depth-limited book, then the ticker.
func (a *Aggregator) fetchOne(ctx context.Context, gw domain.Gateway, symbol string) domain.QuoteOutcome {
	venue := gw.Name()

	book := a.fromBook(ctx, gw, symbol)
	if book.err == nil {
		return domain.QuoteOutcome{Venue: venue, Status: domain.QuoteOk, Quote: book.quote}
	}

	tick := a.fromTicker(ctx, gw, symbol)
	if tick.err == nil {
		a.logger.DebugContext(ctx, "quote degraded to ticker",
			slog.String("venue", venue),
			slog.String("symbol", symbol),
			slog.String("book_error", book.err.Error()),
		)
		return domain.QuoteOutcome{Venue: venue, Status: domain.QuoteDegraded, Quote: tick.quote}
	}

	err := fmt.Errorf("%w: %s %s: book: %v; ticker: %v", domain.ErrVenueUnreachable, venue, symbol, book.err, tick.err)
	a.logger.WarnContext(ctx, "venue unavailable",
		slog.String("venue", venue),
		slog.String("symbol", symbol),
		slog.String("error", err.Error()),
	)
	return domain.QuoteOutcome{Venue: venue, Status: domain.QuoteUnavailable, Err: err}
}

type attempt struct {
	quote domain.Quote
	err   error
}

var errNoTopOfBook = errors.New("no usable bid/ask")

func (a *Aggregator) fromBook(ctx context.Context, gw domain.Gateway, symbol string) attempt {
	rctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	book, err := gw.OrderBook(rctx, symbol, a.cfg.BookDepth)
	if err != nil {
		return attempt{err: err}
	}
	q := domain.Quote{
		Venue:     gw.Name(),
		Symbol:    symbol,
		Bid:       book.BestBid(),
		Ask:       book.BestAsk(),
		Timestamp: stamp(book.Timestamp),
	}
	if !q.Valid() {
		return attempt{err: errNoTopOfBook}
	}
	return attempt{quote: q}
}

func (a *Aggregator) fromTicker(ctx context.Context, gw domain.Gateway, symbol string) attempt {
	rctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	t, err := gw.Ticker(rctx, symbol)
	if err != nil {
		return attempt{err: err}
	}
	q := domain.Quote{
		Venue:     gw.Name(),
		Symbol:    symbol,
		Bid:       t.Bid,
		Ask:       t.Ask,
		Timestamp: stamp(t.Timestamp),
	}
	if !q.Valid() {
		return attempt{err: errNoTopOfBook}
	}
	return attempt{quote: q}
}

func stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts
}
