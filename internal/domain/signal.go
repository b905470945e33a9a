package domain

import "time"

// Signal is an accepted arbitrage opportunity: buy at BuyVenue's ask and sell
// at SellVenue's bid. Prices are captured at detection time and are not
// re-validated before execution.
type Signal struct {
	Symbol       string    `json:"symbol"`
	BuyVenue     string    `json:"buy_venue"`
	SellVenue    string    `json:"sell_venue"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	NetSpreadBps float64   `json:"net_spread_bps"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Key identifies the venue pair and symbol of a signal.
func (s Signal) Key() string {
	return s.Symbol + "|" + s.BuyVenue + "|" + s.SellVenue
}
