package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Config holds the sizing and timeout knobs that do not change at runtime.
type Config struct {
	// MinQty and QtyStep are venue lot rules applied to live quantities;
	// 0 disables them. Paper sizing is exact.
	MinQty  float64
	QtyStep float64
	// BalanceTimeout bounds each balance lookup.
	BalanceTimeout time.Duration
	// OrderTimeout bounds each order submission.
	OrderTimeout time.Duration
}

// Request carries the per-execution values taken from the settings snapshot.
type Request struct {
	Mode          domain.TradeMode
	PaperNotional float64
}

// Executor sizes accepted signals and, in live mode, places the two offsetting
// market orders. It keeps no state between calls.
type Executor struct {
	venues map[string]domain.Gateway
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor creates an Executor over the given venue gateways.
func NewExecutor(venues []domain.Gateway, cfg Config, logger *slog.Logger) *Executor {
	m := make(map[string]domain.Gateway, len(venues))
	for _, v := range venues {
		m[strings.ToLower(v.Name())] = v
	}
	if cfg.BalanceTimeout <= 0 {
		cfg.BalanceTimeout = 5 * time.Second
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 10 * time.Second
	}
	return &Executor{
		venues: m,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "executor")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute turns sig into a TradeResult. Paper mode never fails. Live mode
// fails without placing anything on a balance lookup error or when the
// affordable quantity is zero; once orders are submitted a failure on either
// leg is reported as is and the other leg is left in place.
func (e *Executor) Execute(ctx context.Context, sig domain.Signal, req Request) domain.TradeResult {
	res := domain.TradeResult{
		ID:         uuid.NewString(),
		Mode:       req.Mode,
		Symbol:     sig.Symbol,
		BuyVenue:   sig.BuyVenue,
		BuyPrice:   sig.BuyPrice,
		SellVenue:  sig.SellVenue,
		SellPrice:  sig.SellPrice,
		ExecutedAt: e.now(),
	}

	if req.Mode == domain.TradeModeLive {
		return e.executeLive(ctx, sig, res)
	}
	return e.executePaper(sig, req, res)
}

func (e *Executor) executePaper(sig domain.Signal, req Request, res domain.TradeResult) domain.TradeResult {
	res.Mode = domain.TradeModePaper
	res.Quantity = SizeFromNotional(req.PaperNotional, sig.BuyPrice, 0, 0)
	res.EstPnL = (sig.SellPrice - sig.BuyPrice) * res.Quantity
	return res
}

func (e *Executor) executeLive(ctx context.Context, sig domain.Signal, res domain.TradeResult) domain.TradeResult {
	log := e.logger.With(
		slog.String("symbol", sig.Symbol),
		slog.String("buy_venue", sig.BuyVenue),
		slog.String("sell_venue", sig.SellVenue),
	)

	base, quote, err := domain.ParseSymbol(sig.Symbol)
	if err != nil {
		return fail(res, err)
	}

	buyGw, sellGw, err := e.gateways(sig)
	if err != nil {
		return fail(res, fmt.Errorf("%w: %w", domain.ErrBalanceFetch, err))
	}

	quoteFree, baseFree, err := e.balances(ctx, buyGw, quote, sellGw, base)
	if err != nil {
		log.WarnContext(ctx, "balance fetch failed", slog.String("error", err.Error()))
		return fail(res, err)
	}

	maxBuy := 0.0
	if sig.BuyPrice > 0 {
		maxBuy = quoteFree / sig.BuyPrice
	}
	qty := RoundQty(math.Min(maxBuy, baseFree), e.cfg.MinQty, e.cfg.QtyStep)
	if qty <= 0 {
		res = fail(res, fmt.Errorf("%w: %s free %g on %s, %s free %g on %s",
			domain.ErrInsufficientBalance, quote, quoteFree, sig.BuyVenue, base, baseFree, sig.SellVenue))
		res.Balances = map[string]float64{"quote_free": quoteFree, "base_free": baseFree}
		return res
	}
	res.Quantity = qty

	// Submissions run to completion even if the caller is cancelled so that
	// every placed leg is reported.
	octx := context.WithoutCancel(ctx)

	buy, err := e.submit(octx, buyGw, sig.Symbol, domain.OrderSideBuy, qty)
	if err != nil {
		log.ErrorContext(ctx, "buy leg failed", slog.Float64("qty", qty), slog.String("error", err.Error()))
		return fail(res, fmt.Errorf("%w: buy on %s: %w", domain.ErrOrderSubmission, sig.BuyVenue, err))
	}
	res.BuyOrder = &buy

	sell, err := e.submit(octx, sellGw, sig.Symbol, domain.OrderSideSell, qty)
	if err != nil {
		log.ErrorContext(ctx, "sell leg failed after buy was placed",
			slog.Float64("qty", qty),
			slog.String("buy_order_id", buy.OrderID),
			slog.String("error", err.Error()),
		)
		return fail(res, fmt.Errorf("%w: sell on %s (buy %s already placed on %s): %w",
			domain.ErrOrderSubmission, sig.SellVenue, buy.OrderID, sig.BuyVenue, err))
	}
	res.SellOrder = &sell

	log.InfoContext(ctx, "live trade placed",
		slog.Float64("qty", qty),
		slog.String("buy_order_id", buy.OrderID),
		slog.String("sell_order_id", sell.OrderID),
	)
	return res
}

func (e *Executor) gateways(sig domain.Signal) (buy, sell domain.Gateway, err error) {
	buy, ok := e.venues[strings.ToLower(sig.BuyVenue)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s not configured", domain.ErrVenueUnreachable, sig.BuyVenue)
	}
	sell, ok = e.venues[strings.ToLower(sig.SellVenue)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s not configured", domain.ErrVenueUnreachable, sig.SellVenue)
	}
	return buy, sell, nil
}

// balances fetches the quote asset on the buy venue and the base asset on the
// sell venue concurrently.
func (e *Executor) balances(ctx context.Context, buyGw domain.Gateway, quote string, sellGw domain.Gateway, base string) (quoteFree, baseFree float64, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.freeBalance(gctx, buyGw, quote)
		quoteFree = v
		return err
	})
	g.Go(func() error {
		v, err := e.freeBalance(gctx, sellGw, base)
		baseFree = v
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return quoteFree, baseFree, nil
}

func (e *Executor) freeBalance(ctx context.Context, gw domain.Gateway, asset string) (float64, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.BalanceTimeout)
	defer cancel()

	v, err := gw.FreeBalance(rctx, asset)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", domain.ErrBalanceFetch, gw.Name(), asset, err)
	}
	return math.Max(v, 0), nil
}

func (e *Executor) submit(ctx context.Context, gw domain.Gateway, symbol string, side domain.OrderSide, qty float64) (domain.OrderConfirmation, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	defer cancel()
	return gw.SubmitMarketOrder(rctx, symbol, side, qty)
}

func fail(res domain.TradeResult, err error) domain.TradeResult {
	res.ErrorKind = domain.KindOf(err)
	res.Detail = err.Error()
	return res
}
