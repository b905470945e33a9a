package domain

import "time"

// TradeMode selects simulated or real execution.
type TradeMode string

const (
	TradeModePaper TradeMode = "paper"
	TradeModeLive  TradeMode = "live"
)

// ParseTradeMode accepts "paper" or "live" in any case.
func ParseTradeMode(s string) (TradeMode, bool) {
	switch TradeMode(lower(s)) {
	case TradeModePaper:
		return TradeModePaper, true
	case TradeModeLive:
		return TradeModeLive, true
	}
	return "", false
}

// TradeResult is the terminal outcome of executing one Signal. On success
// ErrorKind is empty; on failure ErrorKind and Detail describe what happened
// and any order that was already placed is still reported.
type TradeResult struct {
	ID         string             `json:"id"`
	Mode       TradeMode          `json:"mode"`
	Symbol     string             `json:"symbol"`
	Quantity   float64            `json:"quantity"`
	BuyVenue   string             `json:"buy_venue"`
	BuyPrice   float64            `json:"buy_price"`
	SellVenue  string             `json:"sell_venue"`
	SellPrice  float64            `json:"sell_price"`
	EstPnL     float64            `json:"est_pnl,omitempty"`
	BuyOrder   *OrderConfirmation `json:"buy_order,omitempty"`
	SellOrder  *OrderConfirmation `json:"sell_order,omitempty"`
	ErrorKind  ErrorKind          `json:"error_kind,omitempty"`
	Detail     string             `json:"detail,omitempty"`
	Balances   map[string]float64 `json:"balances,omitempty"`
	ExecutedAt time.Time          `json:"executed_at"`
}

// OK reports whether the trade completed without a failure record.
func (r TradeResult) OK() bool {
	return r.ErrorKind == KindNone
}

// Partial reports whether exactly one leg was placed before a failure.
func (r TradeResult) Partial() bool {
	return !r.OK() && (r.BuyOrder != nil) != (r.SellOrder != nil)
}
