package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// minRetry bounds how tightly Wait re-polls a refused key.
const minRetry = 5 * time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding window kept in a
// sorted set and updated by one Lua script. Venue gateways share it through
// platform.RateLimited so every replica draws on one request budget per
// venue; the HTTP API uses it per client.
type RateLimiter struct {
	c      *Client
	script *redis.Script
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		c:      c,
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

// Allow counts one request against key if fewer than limit were made in the
// last window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ok, _, err := rl.try(ctx, key, limit, window)
	return ok, err
}

// Wait blocks until a request for key is admitted, sleeping until the oldest
// request in the window expires between attempts.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		ok, retry, err := rl.try(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(max(retry, minRetry))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) try(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := rl.now().UnixMicro()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(rl.seq.Add(1), 10)

	res, err := rl.script.Run(ctx, rl.c.rdb,
		[]string{rl.c.Key("ratelimit", key)},
		now, window.Microseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 3 {
		return false, 0, fmt.Errorf("redis: rate limit %s: unexpected reply %v", key, res)
	}
	return res[0] == 1, time.Duration(res[2]) * time.Microsecond, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
