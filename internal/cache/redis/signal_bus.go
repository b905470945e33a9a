package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	// payloadField is the single field every stream entry carries.
	payloadField = "payload"

	defaultStreamMaxLen int64 = 10000
	subscriberBuffer          = 128
)

// SignalBus carries scanner events over Redis. Channels (ch:signal,
// ch:trade, ...) are fire-and-forget pub/sub for live consumers; streams
// (stream:signals, stream:trades) keep a capped history so the HTTP API and
// dashboards can catch up. All names are namespaced by the client prefix.
type SignalBus struct {
	c      *Client
	maxLen int64
}

// NewSignalBus creates a SignalBus. maxLen caps each stream approximately;
// maxLen <= 0 keeps 10000 entries.
func NewSignalBus(c *Client, maxLen int) *SignalBus {
	capLen := int64(maxLen)
	if capLen <= 0 {
		capLen = defaultStreamMaxLen
	}
	return &SignalBus{c: c, maxLen: capLen}
}

func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.Key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel until ctx is done, then closes the returned
// channel. A name containing glob characters ("ch:*") subscribes by pattern.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	name := sb.c.Key(channel)
	subscribe := sb.c.rdb.Subscribe
	if strings.ContainsAny(channel, "*?[") {
		subscribe = sb.c.rdb.PSubscribe
	}
	sub := subscribe(ctx, name)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go forward(ctx, sub, out)
	return out, nil
}

func forward(ctx context.Context, sub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer sub.Close()

	in := sub.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			msg = m
		}
		select {
		case out <- []byte(msg.Payload):
		case <-ctx.Done():
			return
		}
	}
}

// StreamAppend adds payload to stream, trimming it to about maxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.c.Key(stream),
		MaxLen: sb.maxLen,
		Approx: true,
		Values: []any{payloadField, payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID, oldest first. lastID
// "0" reads from the start. It never blocks; an empty result is not an error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	res, err := sb.c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{sb.c.Key(stream), lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var out []domain.StreamMessage
	for _, s := range res {
		out = toMessages(out, s.Messages)
	}
	return out, nil
}

// StreamRecent returns the newest n entries of stream, newest first.
func (sb *SignalBus) StreamRecent(ctx context.Context, stream string, n int) ([]domain.StreamMessage, error) {
	entries, err := sb.c.rdb.XRevRangeN(ctx, sb.c.Key(stream), "+", "-", int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: stream recent %s: %w", stream, err)
	}
	return toMessages(nil, entries), nil
}

// toMessages appends entries that carry a payload field; others are skipped.
func toMessages(out []domain.StreamMessage, entries []redis.XMessage) []domain.StreamMessage {
	for _, e := range entries {
		switch v := e.Values[payloadField].(type) {
		case string:
			out = append(out, domain.StreamMessage{ID: e.ID, Payload: []byte(v)})
		case []byte:
			out = append(out, domain.StreamMessage{ID: e.ID, Payload: v})
		}
	}
	return out
}

var _ domain.SignalBus = (*SignalBus)(nil)
