package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, auth crypto.HMACAuth) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, auth)
	c.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return c
}

func TestOrderBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"lastUpdateId":1,"bids":[["100.5","2"],["100.4","1"]],"asks":[["100.7","3"]]}`))
	}, crypto.HMACAuth{})

	book, err := c.OrderBook(context.Background(), "BTC/USDT", 3)
	require.NoError(t, err)
	assert.Equal(t, "binance", book.Venue)
	assert.Equal(t, 100.5, book.BestBid())
	assert.Equal(t, 100.7, book.BestAsk())
	assert.Len(t, book.Bids, 2)
}

func TestTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/bookTicker", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","bidPrice":"2000.10","bidQty":"1","askPrice":"2000.30","askQty":"1"}`))
	}, crypto.HMACAuth{})

	tk, err := c.Ticker(context.Background(), "eth/usdt")
	require.NoError(t, err)
	assert.Equal(t, 2000.10, tk.Bid)
	assert.Equal(t, 2000.30, tk.Ask)
}

func TestInvalidSymbolNeverHitsNetwork(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("unexpected request")
	}, crypto.HMACAuth{})

	_, err := c.OrderBook(context.Background(), "BTCUSDT", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusTeapot, domain.ErrRateLimited},
		{http.StatusBadGateway, domain.ErrVenueUnreachable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too much request weight used"}`))
		}, crypto.HMACAuth{})

		_, err := c.Ticker(context.Background(), "BTC/USDT")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestFreeBalanceSigned(t *testing.T) {
	auth := crypto.HMACAuth{Key: "k", Secret: "s"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-MBX-APIKEY"))

		raw := r.URL.RawQuery
		signed, sig, ok := strings.Cut(raw, "&signature=")
		assert.True(t, ok)
		assert.Equal(t, auth.BinanceSignature(signed), sig)
		assert.Equal(t, "1700000000000", r.URL.Query().Get("timestamp"))

		_, _ = w.Write([]byte(`{"balances":[{"asset":"BTC","free":"0.25","locked":"0.1"},{"asset":"USDT","free":"1000","locked":"0"}]}`))
	}, auth)

	free, err := c.FreeBalance(context.Background(), "usdt")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, free)

	free, err = c.FreeBalance(context.Background(), "DOGE")
	require.NoError(t, err)
	assert.Zero(t, free)
}

func TestSignedCallsNeedCredentials(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("unexpected request")
	}, crypto.HMACAuth{})

	_, err := c.FreeBalance(context.Background(), "BTC")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSubmitMarketOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		q, err := url.ParseQuery(r.URL.RawQuery)
		assert.NoError(t, err)
		assert.Equal(t, "SOLUSDT", q.Get("symbol"))
		assert.Equal(t, "SELL", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.0001", q.Get("quantity"))
		_, _ = w.Write([]byte(`{"symbol":"SOLUSDT","orderId":42,"status":"FILLED","executedQty":"0.0001","cummulativeQuoteQty":"0.005"}`))
	}, crypto.HMACAuth{Key: "k", Secret: "s"})

	conf, err := c.SubmitMarketOrder(context.Background(), "SOL/USDT", domain.OrderSideSell, 0.0001)
	require.NoError(t, err)
	assert.Equal(t, "42", conf.OrderID)
	assert.Equal(t, "filled", conf.Status)
	assert.InDelta(t, 50.0, conf.FilledPrice, 1e-9)
}

func TestDepthLimit(t *testing.T) {
	assert.Equal(t, 5, depthLimit(1))
	assert.Equal(t, 10, depthLimit(6))
	assert.Equal(t, 5000, depthLimit(10_000))
}
