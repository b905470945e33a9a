// Package binance implements the gateway for the Binance spot REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/platform"
)

// Name is the venue identifier used in config, signals and logs.
const Name = "binance"

const recvWindow = "5000"

// depthLimits are the book sizes /api/v3/depth accepts.
var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

// Client is the REST gateway for Binance spot.
type Client struct {
	baseURL    string
	auth       crypto.HMACAuth
	httpClient *http.Client
	now        func() time.Time
}

var _ domain.Gateway = (*Client)(nil)

// NewClient creates a Binance gateway. baseURL is the API root, e.g.
// "https://api.binance.com". auth may be empty for market-data-only use.
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

// OrderBook returns the top depth levels of the spot book.
func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (domain.OrderbookSnapshot, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("limit", strconv.Itoa(depthLimit(depth)))

	body, err := c.doPublic(ctx, "/api/v3/depth", params)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("binance: get depth %s: %w", pair, err)
	}

	var resp depthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("binance: decode depth: %w", err)
	}
	bids, err := platform.ParseLevels(resp.Bids, depth)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("binance: bids: %w", err)
	}
	asks, err := platform.ParseLevels(resp.Asks, depth)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("binance: asks: %w", err)
	}

	return domain.OrderbookSnapshot{
		Venue:     Name,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: c.now().UTC(),
	}, nil
}

// Ticker returns the best bid/ask from the book ticker endpoint.
func (c *Client) Ticker(ctx context.Context, symbol string) (domain.Ticker, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	params := url.Values{}
	params.Set("symbol", pair)

	body, err := c.doPublic(ctx, "/api/v3/ticker/bookTicker", params)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance: get book ticker %s: %w", pair, err)
	}

	var resp bookTicker
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Ticker{}, fmt.Errorf("binance: decode book ticker: %w", err)
	}
	bid, err := platform.ParseDecimal(resp.BidPrice)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance: bid price: %w", err)
	}
	ask, err := platform.ParseDecimal(resp.AskPrice)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance: ask price: %w", err)
	}

	return domain.Ticker{
		Venue:     Name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: c.now().UTC(),
	}, nil
}

// FreeBalance returns the unlocked amount of asset in the spot account.
// An asset missing from the account is reported as 0.
func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return 0, fmt.Errorf("binance: get account: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance: decode account: %w", err)
	}
	for _, b := range resp.Balances {
		if strings.EqualFold(b.Asset, asset) {
			free, err := platform.ParseDecimal(b.Free)
			if err != nil {
				return 0, fmt.Errorf("binance: free %s: %w", asset, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

// SubmitMarketOrder places a MARKET order for qty units of the base asset.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, qty float64) (domain.OrderConfirmation, error) {
	pair, err := venueSymbol(symbol)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", platform.FormatQty(qty))
	params.Set("newOrderRespType", "FULL")

	submitted := c.now().UTC()
	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("binance: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("binance: decode order response: %w", err)
	}

	conf := domain.OrderConfirmation{
		Venue:       Name,
		Symbol:      symbol,
		Side:        side,
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Status:      strings.ToLower(resp.Status),
		Quantity:    qty,
		SubmittedAt: submitted,
	}
	conf.FilledQty, _ = platform.ParseDecimal(resp.ExecutedQty)
	if quoteQty, _ := platform.ParseDecimal(resp.CummulativeQuoteQty); conf.FilledQty > 0 {
		conf.FilledPrice = quoteQty / conf.FilledQty
	}
	return conf, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return platform.Do(c.httpClient, req, Name, errorMessage)
}

// doSigned appends timestamp, recvWindow and the HMAC signature to params.
// Binance accepts signed parameters in the query string for every method.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if c.auth.Empty() {
		return nil, platform.ErrMissingCredentials(Name)
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	query := params.Encode()
	query += "&signature=" + c.auth.BinanceSignature(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-MBX-APIKEY", c.auth.Key)
	return platform.Do(c.httpClient, req, Name, errorMessage)
}

func errorMessage(body []byte) string {
	var e apiError
	if json.Unmarshal(body, &e) != nil || e.Msg == "" {
		return ""
	}
	return fmt.Sprintf("%s (%d)", e.Msg, e.Code)
}

// venueSymbol converts BASE/QUOTE into Binance's concatenated form.
func venueSymbol(symbol string) (string, error) {
	base, quote, err := domain.ParseSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}

// depthLimit picks the smallest accepted book size that covers depth.
func depthLimit(depth int) int {
	for _, l := range depthLimits {
		if depth <= l {
			return l
		}
	}
	return depthLimits[len(depthLimits)-1]
}
