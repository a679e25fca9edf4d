package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, buckets: make(map[string]*tokenBucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{
			tokens:     float64(l.cfg.BurstSize),
			maxTokens:  float64(l.cfg.BurstSize),
			refillRate: l.cfg.RequestsPerSecond,
			lastRefill: now,
		}
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.allow(now), nil
}

// RedisLimiter counts requests per key in one-second windows shared by every
// server instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	limit := int64(cfg.RequestsPerSecond)
	if int64(cfg.BurstSize) > limit {
		limit = int64(cfg.BurstSize)
	}
	return &RedisLimiter{client: client, limit: limit, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := fmt.Sprintf("ratelimit:%s:%d", key, l.now().Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, window)
	pipe.Expire(ctx, window, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// RateLimit rejects callers over their budget with 429. Limiter failures are
// logged and the request is let through.
func RateLimit(limiter Limiter, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				key = uid
			}

			ok, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				return next(c)
			}
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
