package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// RateLimited wraps a gateway so every call first waits on a shared limiter
// keyed by venue name. Instances of the scanner sharing one Redis therefore
// share one request budget per venue.
type RateLimited struct {
	next    domain.Gateway
	limiter domain.RateLimiter
	limit   int
	window  time.Duration
	key     string
}

var _ domain.Gateway = (*RateLimited)(nil)

// NewRateLimited decorates gw with limiter, allowing limit calls per window.
func NewRateLimited(gw domain.Gateway, limiter domain.RateLimiter, limit int, window time.Duration) *RateLimited {
	return &RateLimited{
		next:    gw,
		limiter: limiter,
		limit:   limit,
		window:  window,
		key:     "venue:" + gw.Name(),
	}
}

// Name implements domain.Gateway.
func (r *RateLimited) Name() string { return r.next.Name() }

// OrderBook implements domain.Gateway.
func (r *RateLimited) OrderBook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	if err := r.wait(ctx); err != nil {
		return domain.OrderbookSnapshot{}, err
	}
	return r.next.OrderBook(ctx, symbol, depth)
}

// Ticker implements domain.Gateway.
func (r *RateLimited) Ticker(ctx context.Context, symbol string) (domain.Ticker, error) {
	if err := r.wait(ctx); err != nil {
		return domain.Ticker{}, err
	}
	return r.next.Ticker(ctx, symbol)
}

// FreeBalance implements domain.Gateway.
func (r *RateLimited) FreeBalance(ctx context.Context, asset string) (float64, error) {
	if err := r.wait(ctx); err != nil {
		return 0, err
	}
	return r.next.FreeBalance(ctx, asset)
}

// SubmitMarketOrder implements domain.Gateway.
func (r *RateLimited) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, qty float64) (domain.OrderConfirmation, error) {
	if err := r.wait(ctx); err != nil {
		return domain.OrderConfirmation{}, err
	}
	return r.next.SubmitMarketOrder(ctx, symbol, side, qty)
}

// wait reports a limiter that cannot admit the call before ctx ends as a
// rate-limit failure for the venue.
func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx, r.key, r.limit, r.window); err != nil {
		return fmt.Errorf("%s: %w: %w", r.next.Name(), domain.ErrRateLimited, err)
	}
	return nil
}
