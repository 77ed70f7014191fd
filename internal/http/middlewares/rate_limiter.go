package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
)

const rateLimitedMessage = "Too many requests. Please try again in a minute."

// Decision is the outcome of one hit against a fixed window.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key over a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.clients[key]

	if !ok || !now.Before(b.windowEnd) {
		if !ok && len(rl.clients) >= sweepThreshold {
			rl.sweep(now)
		}
		b = &clientBucket{windowEnd: now.Add(rl.window)}
		rl.clients[key] = b
	}

	if b.count >= rl.limit {
		return Decision{
			Allowed:    false,
			Limit:      rl.limit,
			RetryAfter: b.windowEnd.Sub(now),
		}, nil
	}

	b.count++

	return Decision{
		Allowed:    true,
		Limit:      rl.limit,
		Remaining:  rl.limit - b.count,
		RetryAfter: b.windowEnd.Sub(now),
	}, nil
}

const sweepThreshold = 10_000

// sweep drops expired buckets. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, b := range rl.clients {
		if !now.Before(b.windowEnd) {
			delete(rl.clients, k)
		}
	}
}

// RateLimit enforces limiter for the key derived by keyFn. name labels the
// rejection metric. Limiter errors fail open.
func RateLimit(limiter Limiter, name string, keyFn func(*gin.Context) string, prom *observability.Prom, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		d, err := limiter.Allow(c.Request.Context(), name+":"+key)
		if err != nil {
			log.WarnContext(c.Request.Context(), "rate limiter unavailable", "limiter", name, "err", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retryAfter := int(d.RetryAfter.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			if prom != nil {
				prom.RateLimited.WithLabelValues(name).Inc()
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abortWithError(c, http.StatusTooManyRequests, "rate_limited", rateLimitedMessage)
			return
		}

		c.Next()
	}
}

// Unless runs mw for every request skip does not match. Route-scoped skips
// rely on c.FullPath, which gin resolves before the group middleware runs.
func Unless(skip func(*gin.Context) bool, mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skip(c) {
			c.Next()
			return
		}
		mw(c)
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return "ip:" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	if ip == "" {
		return "unknown"
	}

	return ip
}
