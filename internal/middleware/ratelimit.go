package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"chatroom/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a limiter does when redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("rate limit store not configured")

// Window is a fixed-window counter for one action, keyed per caller.
type Window struct {
	rdb    *redis.Client
	action string
	limit  int64
	size   time.Duration
}

// NewWindow allows limit calls to action per size.
func NewWindow(rdb *redis.Client, action string, limit int, size time.Duration) *Window {
	return &Window{rdb: rdb, action: action, limit: int64(limit), size: size}
}

func (w *Window) key(caller string) string {
	return "rl:" + w.action + ":" + caller
}

// Take counts one call by caller. When the window is exhausted it reports
// false and how long until the window resets.
func (w *Window) Take(ctx context.Context, caller string) (bool, time.Duration, error) {
	if w.rdb == nil {
		return false, 0, errNoRedis
	}

	key := w.key(caller)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := w.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, w.size)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
		return false, 0, err
	}

	if incr.Val() <= w.limit {
		return true, 0, nil
	}
	return false, ttl.Val(), nil
}

// RateLimit limits action to limit calls per window for each caller and
// lets requests through when redis is down.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, action string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, action)
}

// RateLimitWithPolicy is RateLimit with an explicit outage policy. Callers are
// keyed by identity when authenticated and by address otherwise.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, action string) fiber.Handler {
	w := NewWindow(rdb, action, limit, window)

	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid := UserID(c); uid != "" {
			caller = "user:" + uid
		}

		allowed, retryAfter, err := w.Take(c.UserContext(), caller)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit unavailable, rejecting",
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   "rate limit unavailable",
			})
		}

		if !allowed {
			if secs := int(retryAfter.Round(time.Second) / time.Second); secs > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many " + action + " requests",
			})
		}
		return c.Next()
	}
}
