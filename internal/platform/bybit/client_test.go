package bybit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
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
		assert.Equal(t, "/v5/market/orderbook", r.URL.Path)
		assert.Equal(t, "spot", r.URL.Query().Get("category"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"s":"BTCUSDT","b":[["64000.1","0.5"]],"a":[["64000.9","0.2"]],"ts":1}}`))
	}, crypto.HMACAuth{})

	book, err := c.OrderBook(context.Background(), "BTC/USDT", 5)
	require.NoError(t, err)
	assert.Equal(t, 64000.1, book.BestBid())
	assert.Equal(t, 64000.9, book.BestAsk())
}

func TestTickerEmptyList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[]}}`))
	}, crypto.HMACAuth{})

	_, err := c.Ticker(context.Background(), "BTC/USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"SOLUSDT","bid1Price":"150.01","ask1Price":"150.03"}]}}`))
	}, crypto.HMACAuth{})

	tk, err := c.Ticker(context.Background(), "SOL/USDT")
	require.NoError(t, err)
	assert.Equal(t, 150.01, tk.Bid)
	assert.Equal(t, 150.03, tk.Ask)
}

func TestRetCodeMapping(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{retInvalidSign, domain.ErrUnauthorized},
		{retTooManyVisits, domain.ErrRateLimited},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"retCode": tc.code, "retMsg": "nope", "result": map[string]any{}})
		}, crypto.HMACAuth{})

		_, err := c.Ticker(context.Background(), "BTC/USDT")
		assert.ErrorIs(t, err, tc.want)
	}
	assert.Error(t, retCodeError(170131, "Insufficient balance"))
	assert.NoError(t, retCodeError(0, "OK"))
}

func TestFreeBalanceSigned(t *testing.T) {
	auth := crypto.HMACAuth{Key: "key", Secret: "secret"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/account/wallet-balance", r.URL.Path)
		want := auth.BybitHeadersAt(r.URL.RawQuery, recvWindow, 1_700_000_000_000)
		assert.Equal(t, want["X-BAPI-SIGN"], r.Header.Get("X-BAPI-SIGN"))
		assert.Equal(t, "key", r.Header.Get("X-BAPI-API-KEY"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"accountType":"UNIFIED","coin":[{"coin":"SOL","walletBalance":"20","locked":"5"}]}]}}`))
	}, auth)

	free, err := c.FreeBalance(context.Background(), "sol")
	require.NoError(t, err)
	assert.Equal(t, 15.0, free)
}

func TestSubmitMarketOrder(t *testing.T) {
	auth := crypto.HMACAuth{Key: "key", Secret: "secret"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/order/create", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		want := auth.BybitHeadersAt(string(raw), recvWindow, 1_700_000_000_000)
		assert.Equal(t, want["X-BAPI-SIGN"], r.Header.Get("X-BAPI-SIGN"))

		var body createOrderRequest
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "Buy", body.Side)
		assert.Equal(t, "Market", body.OrderType)
		assert.Equal(t, "1.5", body.Qty)
		assert.Equal(t, "baseCoin", body.MarketUnit)
		assert.NotEmpty(t, body.OrderLinkID)
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"abc","orderLinkId":"x"}}`))
	}, auth)

	conf, err := c.SubmitMarketOrder(context.Background(), "SOL/USDT", domain.OrderSideBuy, 1.5)
	require.NoError(t, err)
	assert.Equal(t, "abc", conf.OrderID)
	assert.Equal(t, "bybit", conf.Venue)
}

func TestSubmitWithoutCredentials(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", crypto.HMACAuth{})
	_, err := c.SubmitMarketOrder(context.Background(), "SOL/USDT", domain.OrderSideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
