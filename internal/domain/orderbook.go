package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a depth-limited snapshot of one symbol on one venue.
// Bids are sorted best (highest) first, asks best (lowest) first.
type OrderbookSnapshot struct {
	Venue     string
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the top bid price, or 0 when the bid side is empty.
func (s OrderbookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 when the ask side is empty.
func (s OrderbookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// Ticker is the lighter best-bid/best-ask summary some venues serve
// separately from the book.
type Ticker struct {
	Venue     string
	Symbol    string
	Bid       float64
	Ask       float64
	Timestamp time.Time
}
