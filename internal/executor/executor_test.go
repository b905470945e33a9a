package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

type order struct {
	symbol string
	side   domain.OrderSide
	qty    float64
}

type fakeVenue struct {
	name        string
	balances    map[string]float64
	balanceErr  error
	balanceWait time.Duration
	orderErr    error
	onOrder     func()

	mu       sync.Mutex
	orders   []order
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) OrderBook(context.Context, string, int) (domain.OrderbookSnapshot, error) {
	return domain.OrderbookSnapshot{}, errors.New("unused")
}

func (f *fakeVenue) Ticker(context.Context, string) (domain.Ticker, error) {
	return domain.Ticker{}, errors.New("unused")
}

func (f *fakeVenue) FreeBalance(ctx context.Context, asset string) (float64, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	if n > f.peak.Load() {
		f.peak.Store(n)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.balanceWait > 0 {
		select {
		case <-time.After(f.balanceWait):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[asset], nil
}

func (f *fakeVenue) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, qty float64) (domain.OrderConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderConfirmation{}, err
	}
	f.mu.Lock()
	if f.orderErr != nil {
		f.mu.Unlock()
		return domain.OrderConfirmation{}, f.orderErr
	}
	f.orders = append(f.orders, order{symbol, side, qty})
	f.mu.Unlock()
	if f.onOrder != nil {
		f.onOrder()
	}
	return domain.OrderConfirmation{
		Venue:    f.name,
		Symbol:   symbol,
		Side:     side,
		OrderID:  f.name + "-1",
		Status:   "filled",
		Quantity: qty,
	}, nil
}

func (f *fakeVenue) placed() []order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]order(nil), f.orders...)
}

func nopLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func signal() domain.Signal {
	return domain.Signal{
		Symbol:       "SOL/USDT",
		BuyVenue:     "binance",
		SellVenue:    "bybit",
		BuyPrice:     50,
		SellPrice:    51,
		NetSpreadBps: 150,
	}
}

func live() Request { return Request{Mode: domain.TradeModeLive} }

func TestExecute_Paper(t *testing.T) {
	ex := NewExecutor(nil, Config{}, nopLogger())
	res := ex.Execute(context.Background(), signal(), Request{Mode: domain.TradeModePaper, PaperNotional: 200})

	require.True(t, res.OK())
	assert.Equal(t, domain.TradeModePaper, res.Mode)
	assert.InDelta(t, 4.0, res.Quantity, 1e-12)
	assert.InDelta(t, 200.0, res.Quantity*res.BuyPrice, 1e-9)
	assert.InDelta(t, 4.0, res.EstPnL, 1e-9)
	assert.Nil(t, res.BuyOrder)
	assert.NotEmpty(t, res.ID)
}

func TestExecute_PaperZeroPriceNeverFails(t *testing.T) {
	ex := NewExecutor(nil, Config{}, nopLogger())
	sig := signal()
	sig.BuyPrice = 0

	res := ex.Execute(context.Background(), sig, Request{Mode: domain.TradeModePaper, PaperNotional: 200})
	assert.True(t, res.OK())
	assert.Zero(t, res.Quantity)
	assert.Zero(t, res.EstPnL)
}

func TestExecute_PaperIgnoresLotRules(t *testing.T) {
	ex := NewExecutor(nil, Config{MinQty: 10, QtyStep: 3}, nopLogger())
	sig := signal()
	sig.BuyPrice = 48

	res := ex.Execute(context.Background(), sig, Request{Mode: domain.TradeModePaper, PaperNotional: 200})
	require.True(t, res.OK())
	assert.InDelta(t, 200.0/48, res.Quantity, 1e-12)
	assert.InDelta(t, 200.0, res.Quantity*res.BuyPrice, 1e-9)
}

func TestExecute_LiveCappedByBase(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())

	require.True(t, res.OK(), res.Detail)
	assert.Equal(t, 15.0, res.Quantity)
	require.NotNil(t, res.BuyOrder)
	require.NotNil(t, res.SellOrder)
	assert.Equal(t, []order{{"SOL/USDT", domain.OrderSideBuy, 15}}, buy.placed())
	assert.Equal(t, []order{{"SOL/USDT", domain.OrderSideSell, 15}}, sell.placed())
}

func TestExecute_LiveCappedByQuote(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 300}}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())
	require.True(t, res.OK())
	assert.Equal(t, 6.0, res.Quantity)
	assert.LessOrEqual(t, res.Quantity*res.BuyPrice, 300.0+1e-9)
}

func TestExecute_LiveCapProperty(t *testing.T) {
	cases := []struct{ quoteFree, baseFree, price float64 }{
		{1000, 15, 50}, {1, 1000, 0.3}, {12345.67, 0.5, 64000}, {0.01, 0.01, 0.01}, {99, 3.3, 33},
	}
	for _, c := range cases {
		buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": c.quoteFree}}
		sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": c.baseFree}}
		ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())
		sig := signal()
		sig.BuyPrice = c.price

		res := ex.Execute(context.Background(), sig, live())
		require.True(t, res.OK())
		assert.LessOrEqual(t, res.Quantity, c.baseFree)
		assert.LessOrEqual(t, res.Quantity*c.price, c.quoteFree+1e-9)
	}
}

func TestExecute_LiveInsufficientBalance(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 0}}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())

	assert.Equal(t, domain.KindInsufficientBalance, res.ErrorKind)
	assert.Equal(t, map[string]float64{"quote_free": 0, "base_free": 15}, res.Balances)
	assert.Empty(t, buy.placed())
	assert.Empty(t, sell.placed())
}

func TestExecute_LiveBelowMinQtyIsInsufficient(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 10}}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{MinQty: 1, QtyStep: 0.01}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())
	assert.Equal(t, domain.KindInsufficientBalance, res.ErrorKind)
	assert.Empty(t, buy.placed())
}

func TestExecute_LiveBalanceFetchError(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}}
	sell := &fakeVenue{name: "bybit", balanceErr: errors.New("timeout")}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())

	assert.Equal(t, domain.KindBalanceFetchError, res.ErrorKind)
	assert.Contains(t, res.Detail, "timeout")
	assert.Empty(t, buy.placed())
	assert.Empty(t, sell.placed())
}

func TestExecute_LiveBalancesFetchedConcurrently(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}, balanceWait: 80 * time.Millisecond}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}, balanceWait: 80 * time.Millisecond}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	start := time.Now()
	res := ex.Execute(context.Background(), signal(), live())
	require.True(t, res.OK())
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestExecute_LiveUnknownVenue(t *testing.T) {
	ex := NewExecutor([]domain.Gateway{&fakeVenue{name: "binance"}}, Config{}, nopLogger())
	res := ex.Execute(context.Background(), signal(), live())
	assert.Equal(t, domain.KindBalanceFetchError, res.ErrorKind)
}

func TestExecute_LiveInvalidSymbol(t *testing.T) {
	buy := &fakeVenue{name: "binance"}
	sell := &fakeVenue{name: "bybit"}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())
	sig := signal()
	sig.Symbol = "SOLUSDT"

	res := ex.Execute(context.Background(), sig, live())
	assert.Equal(t, domain.KindInvalidSymbol, res.ErrorKind)
	assert.Zero(t, buy.inflight.Load()+buy.peak.Load())
}

func TestExecute_LiveSellLegFailsLeavesBuy(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}, orderErr: errors.New("rejected")}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())

	assert.Equal(t, domain.KindOrderSubmissionError, res.ErrorKind)
	assert.True(t, res.Partial())
	require.NotNil(t, res.BuyOrder)
	assert.Nil(t, res.SellOrder)
	assert.Len(t, buy.placed(), 1, "buy leg is not reversed")
	assert.Contains(t, res.Detail, res.BuyOrder.OrderID)
}

func TestExecute_LiveBuyLegFailsSkipsSell(t *testing.T) {
	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}, orderErr: errors.New("rejected")}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(context.Background(), signal(), live())

	assert.Equal(t, domain.KindOrderSubmissionError, res.ErrorKind)
	assert.False(t, res.Partial())
	assert.Empty(t, sell.placed())
}

func TestExecute_LiveOrdersSurviveCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}, onOrder: cancel}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(ctx, signal(), live())

	require.True(t, res.OK(), res.Detail)
	assert.Len(t, buy.placed(), 1)
	assert.Len(t, sell.placed(), 1)
}

func TestExecute_LiveCancelledBeforeBalances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buy := &fakeVenue{name: "binance", balances: map[string]float64{"USDT": 1000}}
	sell := &fakeVenue{name: "bybit", balances: map[string]float64{"SOL": 15}}
	ex := NewExecutor([]domain.Gateway{buy, sell}, Config{}, nopLogger())

	res := ex.Execute(ctx, signal(), live())
	assert.Equal(t, domain.KindBalanceFetchError, res.ErrorKind)
	assert.Empty(t, buy.placed())
}
