package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wanderfeed/internal/middleware"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

// ErrUnavailable is returned while the breaker is open or saturated.
var ErrUnavailable = errors.New("recommend: provider unavailable")

// GuardConfig bounds calls to the provider.
type GuardConfig struct {
	Timeout        time.Duration
	MaxConcurrency int64
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenDuration is how long the breaker stays open before probing.
	OpenDuration time.Duration
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenDuration <= 0 {
		c.OpenDuration = time.Minute
	}
	return c
}

// Guarded limits concurrency, applies a per-call timeout and trips a
// circuit breaker after repeated provider failures.
type Guarded struct {
	inner   Generator
	sem     *semaphore.Weighted
	cb      *gobreaker.CircuitBreaker[[]Draft]
	timeout time.Duration
}

// NewGuarded wraps inner.
func NewGuarded(inner Generator, cfg GuardConfig) *Guarded {
	cfg = cfg.withDefaults()
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        "recommendations",
		MaxRequests: 1,
		Interval:    cfg.OpenDuration,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Guarded{
		inner:   inner,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrency),
		cb:      gobreaker.NewCircuitBreaker[[]Draft](settings),
		timeout: cfg.Timeout,
	}
}

func (g *Guarded) Generate(ctx context.Context, req Request) ([]Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("recommend: wait for slot: %w", err)
	}
	defer g.sem.Release(1)

	drafts, err := g.cb.Execute(func() ([]Draft, error) {
		return g.inner.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return drafts, err
}

// State reports the breaker state for health output.
func (g *Guarded) State() string {
	return g.cb.State().String()
}
