package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderConfirmation is what a venue returns for an accepted market order.
type OrderConfirmation struct {
	Venue       string    `json:"venue"`
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	Quantity    float64   `json:"quantity"`
	FilledQty   float64   `json:"filled_qty,omitempty"`
	FilledPrice float64   `json:"filled_price,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
