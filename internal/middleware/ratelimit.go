package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503, for routes that front a paid upstream.
	FailClosed
)

// Rule is a fixed-window limit: at most Max requests per Window per caller.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

var errNoStore = errors.New("rate limit store not configured")

// RateLimiter counts requests per (rule, caller) in Redis.
type RateLimiter struct {
	rdb     redis.Cmdable
	enabled bool
}

// NewRateLimiter returns a limiter. A disabled limiter allows everything,
// which keeps local development and tests unthrottled.
func NewRateLimiter(rdb redis.Cmdable, enabled bool) *RateLimiter {
	return &RateLimiter{rdb: rdb, enabled: enabled}
}

// Allow counts one request by caller against rule. The increment and the
// expiry are sent in one MULTI so a window key can never outlive its TTL.
func (l *RateLimiter) Allow(ctx context.Context, rule Rule, caller string) (Decision, error) {
	if l == nil || !l.enabled {
		return Decision{Allowed: true, Remaining: rule.Max}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoStore
	}

	key := "rl:" + rule.Name + ":" + caller
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, rule.Window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	count := incr.Val()
	reset := ttl.Val()
	if reset <= 0 {
		reset = rule.Window
	}
	return Decision{
		Allowed:   count <= int64(rule.Max),
		Remaining: max(rule.Max-int(count), 0),
		ResetIn:   reset,
	}, nil
}

// Limit enforces rule per authenticated user, or per remote IP for
// anonymous callers.
func (l *RateLimiter) Limit(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid := c.Locals(LocalUserID); uid != nil {
			caller = fmt.Sprintf("user:%v", uid)
		}

		d, err := l.Allow(c.UserContext(), rule, caller)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("rule", rule.Name),
				slog.Bool("fail_closed", rule.Policy == FailClosed),
				slog.String("error", err.Error()),
			)
			if rule.Policy == FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
