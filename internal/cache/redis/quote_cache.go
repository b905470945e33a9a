package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuoteCache implements domain.QuoteCache using one Redis hash per symbol.
//
// Key schema:
//
//	{prefix}quotes:{symbol} - hash with fields "{venue}:bid", "{venue}:ask" and
//	                  "{venue}:ts" (Unix nanoseconds)
//
// Each write replaces the whole hash so venues that dropped out of a cycle do
// not linger.
type QuoteCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache. ttl <= 0 keeps entries until the next
// write.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{c: c, rdb: c.rdb, ttl: ttl}
}

func (qc *QuoteCache) key(symbol string) string {
	return qc.c.Key("quotes", domain.NormalizeSymbol(symbol))
}

// SetQuotes replaces the cached quotes for symbol.
func (qc *QuoteCache) SetQuotes(ctx context.Context, symbol string, quotes map[string]domain.Quote) error {
	key := qc.key(symbol)

	fields := make(map[string]interface{}, len(quotes)*3)
	for venue, q := range quotes {
		fields[venue+":bid"] = strconv.FormatFloat(q.Bid, 'f', -1, 64)
		fields[venue+":ask"] = strconv.FormatFloat(q.Ask, 'f', -1, 64)
		fields[venue+":ts"] = strconv.FormatInt(q.Timestamp.UnixNano(), 10)
	}

	pipe := qc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		if qc.ttl > 0 {
			pipe.Expire(ctx, key, qc.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes %s: %w", symbol, err)
	}
	return nil
}

// GetQuotes returns the cached quotes for symbol keyed by venue. It returns
// domain.ErrNotFound when nothing is cached.
func (qc *QuoteCache) GetQuotes(ctx context.Context, symbol string) (map[string]domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, qc.key(symbol)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	out := make(map[string]domain.Quote)
	for field, v := range vals {
		venue, attr, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		q := out[venue]
		q.Venue = venue
		q.Symbol = domain.NormalizeSymbol(symbol)
		switch attr {
		case "bid":
			q.Bid, err = strconv.ParseFloat(v, 64)
		case "ask":
			q.Ask, err = strconv.ParseFloat(v, 64)
		case "ts":
			var ns int64
			ns, err = strconv.ParseInt(v, 10, 64)
			q.Timestamp = time.Unix(0, ns).UTC()
		}
		if err != nil {
			return nil, fmt.Errorf("redis: parse %s %s: %w", symbol, field, err)
		}
		out[venue] = q
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
