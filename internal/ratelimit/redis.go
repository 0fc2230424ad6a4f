package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrBelowCapScript checks and increments in one round trip so concurrent
// callers cannot race past the cap, and a rejected call has no side effects.
var incrBelowCapScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// RedisCounter backs the rate limiter with a shared Redis instance, so the
// quota holds across all web-tier processes.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps an existing Redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) IncrBelowCap(ctx context.Context, key string, cap int, ttl time.Duration) (bool, error) {
	res, err := incrBelowCapScript.Run(ctx, c.client, []string{key}, cap, int(ttl.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("incrementing counter %s: %w", key, err)
	}
	return res == 1, nil
}
