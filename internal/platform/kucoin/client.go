// Package kucoin implements the gateway for the KuCoin spot REST API.
package kucoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/platform"
)

// Name is the venue identifier used in config, signals and logs.
const Name = "kucoin"

// KuCoin business codes for auth and throttling failures.
const (
	codeTooMany         = "429000"
	codeInvalidKey      = "400003"
	codeInvalidPass     = "400004"
	codeInvalidSign     = "400005"
	codeBadTimestamp    = "400002"
	codeIPNotAllowed    = "400006"
	codeNoPermission    = "400007"
	codeKeyNotSupported = "411100"
)

// Client is the REST gateway for KuCoin spot.
type Client struct {
	baseURL    string
	auth       crypto.HMACAuth
	httpClient *http.Client
	now        func() time.Time
}

var _ domain.Gateway = (*Client)(nil)

// NewClient creates a KuCoin gateway. baseURL is the API root, e.g.
// "https://api.kucoin.com". Signed calls need a passphrase as well as a key
// pair.
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

// OrderBook returns up to depth levels from the 20-level partial book.
func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}

	var data level2
	if err := c.get(ctx, "/api/v1/market/orderbook/level2_20", url.Values{"symbol": {pair}}, false, &data); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("kucoin: get orderbook %s: %w", pair, err)
	}

	bids, err := platform.ParseLevels(data.Bids, depth)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("kucoin: bids: %w", err)
	}
	asks, err := platform.ParseLevels(data.Asks, depth)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("kucoin: asks: %w", err)
	}

	return domain.OrderbookSnapshot{
		Venue:     Name,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: c.now().UTC(),
	}, nil
}

// Ticker returns best bid/ask from the level-1 book.
func (c *Client) Ticker(ctx context.Context, symbol string) (domain.Ticker, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	var data level1
	if err := c.get(ctx, "/api/v1/market/orderbook/level1", url.Values{"symbol": {pair}}, false, &data); err != nil {
		return domain.Ticker{}, fmt.Errorf("kucoin: get level1 %s: %w", pair, err)
	}

	bid, err := platform.ParseDecimal(data.BestBid)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("kucoin: best bid: %w", err)
	}
	ask, err := platform.ParseDecimal(data.BestAsk)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("kucoin: best ask: %w", err)
	}

	return domain.Ticker{
		Venue:     Name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: c.now().UTC(),
	}, nil
}

// FreeBalance returns the available amount of asset in the trade account.
func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	currency := strings.ToUpper(asset)
	params := url.Values{}
	params.Set("currency", currency)
	params.Set("type", "trade")

	var accounts []account
	if err := c.get(ctx, "/api/v1/accounts", params, true, &accounts); err != nil {
		return 0, fmt.Errorf("kucoin: get accounts: %w", err)
	}

	total := 0.0
	for _, a := range accounts {
		if a.Currency != currency || a.Type != "trade" {
			continue
		}
		v, err := platform.ParseDecimal(a.Available)
		if err != nil {
			return 0, fmt.Errorf("kucoin: available %s: %w", currency, err)
		}
		total += v
	}
	return total, nil
}

// SubmitMarketOrder places a market order for qty units of the base asset.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, qty float64) (domain.OrderConfirmation, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	reqBody := orderRequest{
		ClientOid: uuid.NewString(),
		Side:      string(side),
		Symbol:    pair,
		Type:      "market",
		Size:      platform.FormatQty(qty),
	}

	submitted := c.now().UTC()
	var res orderResult
	if err := c.post(ctx, "/api/v1/orders", reqBody, &res); err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("kucoin: place order: %w", err)
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
	endpoint := path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if signed {
		if c.auth.Empty() || c.auth.Passphrase == "" {
			return platform.ErrMissingCredentials(Name)
		}
		c.sign(req, http.MethodGet, endpoint, "")
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.auth.Empty() || c.auth.Passphrase == "" {
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
	c.sign(req, http.MethodPost, path, string(payload))
	return c.do(req, out)
}

// sign adds the KC-API-* headers. endpoint includes the query string.
func (c *Client) sign(req *http.Request, method, endpoint, body string) {
	for k, v := range c.auth.KucoinHeadersAt(method, endpoint, body, c.now().UnixMilli()) {
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
	if err := codeError(env.Code, env.Msg); err != nil {
		return err
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// codeError maps a non-success business code onto the domain errors.
func codeError(code, msg string) error {
	switch code {
	case codeOK:
		return nil
	case codeInvalidKey, codeInvalidPass, codeInvalidSign, codeBadTimestamp,
		codeIPNotAllowed, codeNoPermission, codeKeyNotSupported:
		return fmt.Errorf("%s: %w: %s (%s)", Name, domain.ErrUnauthorized, msg, code)
	case codeTooMany:
		return fmt.Errorf("%s: %w: %s (%s)", Name, domain.ErrRateLimited, msg, code)
	default:
		return fmt.Errorf("%s: %s (%s)", Name, msg, code)
	}
}

func errorMessage(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) != nil || env.Msg == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", env.Msg, env.Code)
}

// venueSymbol converts BASE/QUOTE into KuCoin's dashed form.
func venueSymbol(symbol string) (string, error) {
	base, quote, err := domain.ParseSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + "-" + quote, nil
}
