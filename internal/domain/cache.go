package domain

import (
	"context"
	"time"
)

// QuoteCache keeps the latest quote per venue for each symbol so operators
// can inspect what the scanner last saw.
type QuoteCache interface {
	SetQuotes(ctx context.Context, symbol string, quotes map[string]Quote) error
	GetQuotes(ctx context.Context, symbol string) (map[string]Quote, error)
}

// RateLimiter provides distributed rate limiting. Allow counts the request
// when it is permitted; Wait blocks until Allow would succeed.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channel names.
const (
	ChannelSignal = "ch:signal"
	ChannelTrade  = "ch:trade"
	ChannelStatus = "ch:status"
	ChannelError  = "ch:error"
)

// Capped streams holding the most recent events for late subscribers.
const (
	StreamSignals = "stream:signals"
	StreamTrades  = "stream:trades"
)
