package kucoin

import "encoding/json"

// --------------------------------------------------------------------------
// KuCoin spot API DTOs
// --------------------------------------------------------------------------

// codeOK is the "code" KuCoin returns on success.
const codeOK = "200000"

// envelope wraps every KuCoin REST response.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// level2 is the data of GET /api/v1/market/orderbook/level2_20.
type level2 struct {
	Time     int64      `json:"time"`
	Sequence string     `json:"sequence"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

// level1 is the data of GET /api/v1/market/orderbook/level1.
type level1 struct {
	Time        int64  `json:"time"`
	Sequence    string `json:"sequence"`
	Price       string `json:"price"`
	BestBid     string `json:"bestBid"`
	BestBidSize string `json:"bestBidSize"`
	BestAsk     string `json:"bestAsk"`
	BestAskSize string `json:"bestAskSize"`
}

// account is one entry of GET /api/v1/accounts.
type account struct {
	ID        string `json:"id"`
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Holds     string `json:"holds"`
}

// orderRequest is the body of POST /api/v1/orders for a market order.
type orderRequest struct {
	ClientOid string `json:"clientOid"`
	Side      string `json:"side"`
	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	Size      string `json:"size"`
}

type orderResult struct {
	OrderID string `json:"orderId"`
}
