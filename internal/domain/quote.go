package domain

import "time"

// Quote is a top-of-book reading for one symbol on one venue. Bid and Ask are
// both strictly positive; a venue without a usable book has no Quote at all.
type Quote struct {
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"ts"`
}

// Valid reports whether both sides of the quote are usable.
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0
}

// QuoteStatus tags how a venue answered a quote request.
type QuoteStatus string

const (
	QuoteOk          QuoteStatus = "ok"          // from the order book
	QuoteDegraded    QuoteStatus = "degraded"    // from the ticker fallback
	QuoteUnavailable QuoteStatus = "unavailable" // neither source usable
)

// QuoteOutcome is the per-venue result of one aggregation round. Quote is
// only meaningful when Status is QuoteOk or QuoteDegraded; Err is only set
// when Status is QuoteUnavailable.
type QuoteOutcome struct {
	Venue  string
	Status QuoteStatus
	Quote  Quote
	Err    error
}

// Usable reports whether the outcome carries a quote.
func (o QuoteOutcome) Usable() bool {
	return o.Status == QuoteOk || o.Status == QuoteDegraded
}
