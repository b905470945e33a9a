// Package bybit implements the gateway for the Bybit v5 spot REST API.
package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/platform"
)

// Name is the venue identifier used in config, signals and logs.
const Name = "bybit"

const (
	category   = "spot"
	recvWindow = "5000"
)

// retCodes Bybit uses for auth and throttling failures.
const (
	retInvalidKey     = 10003
	retInvalidSign    = 10004
	retPermission     = 10005
	retTooManyVisits  = 10006
	retIPRateLimit    = 10018
	retTimestampRange = 10002
)

// Client is the REST gateway for Bybit spot.
type Client struct {
	baseURL    string
	auth       crypto.HMACAuth
	httpClient *http.Client
	now        func() time.Time
}

var _ domain.Gateway = (*Client)(nil)

// NewClient creates a Bybit gateway. baseURL is the API root, e.g.
// "https://api.bybit.com".
func NewClient(baseURL string, auth crypto.HMACAuth) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       auth,
		httpClient: platform.NewHTTPClient(),
		now:        time.Now,
	}
}

// Name implements domain.Gateway.
func (c *Client) Name() string { return Name }

// OrderBook returns the top depth levels of the spot book. Spot books are
// served with 1 to 200 levels.
func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}

	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", pair)
	params.Set("limit", strconv.Itoa(min(max(depth, 1), 200)))

	var res orderbookResult
	if err := c.get(ctx, "/v5/market/orderbook", params, false, &res); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("bybit: get orderbook %s: %w", pair, err)
	}

	bids, err := platform.ParseLevels(res.Bids, depth)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("bybit: bids: %w", err)
	}
	asks, err := platform.ParseLevels(res.Asks, depth)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("bybit: asks: %w", err)
	}

	return domain.OrderbookSnapshot{
		Venue:     Name,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: c.now().UTC(),
	}, nil
}

// Ticker returns best bid/ask from the spot tickers endpoint.
func (c *Client) Ticker(ctx context.Context, symbol string) (domain.Ticker, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", pair)

	var res tickersResult
	if err := c.get(ctx, "/v5/market/tickers", params, false, &res); err != nil {
		return domain.Ticker{}, fmt.Errorf("bybit: get ticker %s: %w", pair, err)
	}
	if len(res.List) == 0 {
		return domain.Ticker{}, fmt.Errorf("bybit: ticker %s: %w", pair, domain.ErrNotFound)
	}

	item := res.List[0]
	bid, err := platform.ParseDecimal(item.Bid1Price)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("bybit: bid price: %w", err)
	}
	ask, err := platform.ParseDecimal(item.Ask1Price)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("bybit: ask price: %w", err)
	}

	return domain.Ticker{
		Venue:     Name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: c.now().UTC(),
	}, nil
}

// FreeBalance returns walletBalance minus locked for asset in the unified
// trading account.
func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	coin := strings.ToUpper(asset)
	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	params.Set("coin", coin)

	var res walletResult
	if err := c.get(ctx, "/v5/account/wallet-balance", params, true, &res); err != nil {
		return 0, fmt.Errorf("bybit: get wallet balance: %w", err)
	}

	for _, acct := range res.List {
		for _, cb := range acct.Coin {
			if cb.Coin != coin {
				continue
			}
			total, err := platform.ParseDecimal(cb.WalletBalance)
			if err != nil {
				return 0, fmt.Errorf("bybit: wallet balance %s: %w", coin, err)
			}
			locked, err := platform.ParseDecimal(cb.Locked)
			if err != nil {
				return 0, fmt.Errorf("bybit: locked %s: %w", coin, err)
			}
			return max(total-locked, 0), nil
		}
	}
	return 0, nil
}

// SubmitMarketOrder places a spot market order sized in the base coin.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, qty float64) (domain.OrderConfirmation, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	reqBody := createOrderRequest{
		Category:    category,
		Symbol:      pair,
		Side:        sideName(side),
		OrderType:   "Market",
		Qty:         platform.FormatQty(qty),
		MarketUnit:  "baseCoin",
		OrderLinkID: uuid.NewString(),
	}

	submitted := c.now().UTC()
	var res createOrderResult
	if err := c.post(ctx, "/v5/order/create", reqBody, &res); err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("bybit: place order: %w", err)
	}

	return domain.OrderConfirmation{
		Venue:       Name,
		Symbol:      symbol,
		Side:        side,
		OrderID:     res.OrderID,
		Status:      "submitted",
		Quantity:    qty,
		SubmittedAt: submitted,
	}, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	query := params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if signed {
		if c.auth.Empty() {
			return platform.ErrMissingCredentials(Name)
		}
		c.sign(req, query)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.auth.Empty() {
		return platform.ErrMissingCredentials(Name)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, string(payload))
	return c.do(req, out)
}

func (c *Client) sign(req *http.Request, payload string) {
	for k, v := range c.auth.BybitHeadersAt(payload, recvWindow, c.now().UnixMilli()) {
		req.Header.Set(k, v)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	body, err := platform.Do(c.httpClient, req, Name, errorMessage)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := retCodeError(env.RetCode, env.RetMsg); err != nil {
		return err
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// retCodeError maps a non-zero retCode onto the domain errors.
func retCodeError(code int, msg string) error {
	switch code {
	case 0:
		return nil
	case retInvalidKey, retInvalidSign, retPermission, retTimestampRange:
		return fmt.Errorf("%s: %w: %s (%d)", Name, domain.ErrUnauthorized, msg, code)
	case retTooManyVisits, retIPRateLimit:
		return fmt.Errorf("%s: %w: %s (%d)", Name, domain.ErrRateLimited, msg, code)
	default:
		return fmt.Errorf("%s: %s (%d)", Name, msg, code)
	}
}

func errorMessage(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) != nil || env.RetMsg == "" {
		return ""
	}
	return fmt.Sprintf("%s (%d)", env.RetMsg, env.RetCode)
}

func sideName(side domain.OrderSide) string {
	if side == domain.OrderSideSell {
		return "Sell"
	}
	return "Buy"
}

// venueSymbol converts BASE/QUOTE into Bybit's concatenated form.
func venueSymbol(symbol string) (string, error) {
	base, quote, err := domain.ParseSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}
