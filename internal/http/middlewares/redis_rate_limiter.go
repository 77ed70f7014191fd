package middlewares

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// atomic INCR, and start the window on the first hit
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// Scripter is the part of a redis client the limiter needs.
type Scripter = redis.Scripter

// RedisRateLimiter shares fixed-window counters across replicas.
type RedisRateLimiter struct {
	rdb    Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(rdb Scripter, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "userhub:rl:",
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := incrExpireScript.Run(ctx, rl.rdb, []string{rl.prefix + key}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = rl.window
	}

	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:    count <= rl.limit,
		Limit:      rl.limit,
		Remaining:  remaining,
		RetryAfter: ttl,
	}, nil
}
