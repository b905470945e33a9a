package domain

import "context"

// Gateway is the per-venue exchange client the engine talks to. Symbols are
// always in BASE/QUOTE form; implementations translate to venue notation.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Name() string
	OrderBook(ctx context.Context, symbol string, depth int) (OrderbookSnapshot, error)
	Ticker(ctx context.Context, symbol string) (Ticker, error)
	FreeBalance(ctx context.Context, asset string) (float64, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (OrderConfirmation, error)
}

// EventPublisher ships engine events to an external stream.
type EventPublisher interface {
	PublishSignal(ctx context.Context, sig Signal) error
	PublishTrade(ctx context.Context, res TradeResult) error
	Close() error
}
