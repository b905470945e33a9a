package bybit

import "encoding/json"

// --------------------------------------------------------------------------
// Bybit v5 API DTOs
// --------------------------------------------------------------------------

// envelope wraps every v5 response. Bybit reports most failures with HTTP 200
// and a non-zero retCode.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// orderbookResult is the result of GET /v5/market/orderbook.
type orderbookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	TS     int64      `json:"ts"`
}

// tickersResult is the result of GET /v5/market/tickers.
type tickersResult struct {
	Category string       `json:"category"`
	List     []tickerItem `json:"list"`
}

type tickerItem struct {
	Symbol    string `json:"symbol"`
	Bid1Price string `json:"bid1Price"`
	Ask1Price string `json:"ask1Price"`
	LastPrice string `json:"lastPrice"`
}

// walletResult is the result of GET /v5/account/wallet-balance.
type walletResult struct {
	List []walletAccount `json:"list"`
}

type walletAccount struct {
	AccountType string       `json:"accountType"`
	Coin        []walletCoin `json:"coin"`
}

type walletCoin struct {
	Coin          string `json:"coin"`
	WalletBalance string `json:"walletBalance"`
	Locked        string `json:"locked"`
}

// createOrderRequest is the body of POST /v5/order/create.
type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	MarketUnit  string `json:"marketUnit"`
	OrderLinkID string `json:"orderLinkId"`
}

type createOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}
