// Package exec holds the execution-side policies: token-bucket rate
// limiting, order operation timeout tracking, and the policy bundle the
// venue executors compose.
package exec

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"connector_go/internal/domain"
)

// RateLimitMode selects the behavior when no token is available.
type RateLimitMode uint8

const (
	// RateLimitReject drops the operation immediately.
	RateLimitReject RateLimitMode = iota
	// RateLimitWait sleeps until a token frees up, then proceeds.
	RateLimitWait
	// RateLimitCallback notifies the caller and drops the operation.
	RateLimitCallback
)

// RateLimitConfig configures an active rate-limit policy.
// No defaults: capacity and refill rate must be explicit.
type RateLimitConfig struct {
	Capacity      int     // max burst tokens
	RefillRate    float64 // tokens per second
	Mode          RateLimitMode
	OnRateLimited func(id domain.OrderID, wait time.Duration)
}

// Valid reports whether the config describes a usable bucket.
func (c RateLimitConfig) Valid() bool {
	return c.Capacity > 0 && c.RefillRate > 0
}

// RateLimitPolicy gates executor operations.
type RateLimitPolicy interface {
	TryAcquire(id domain.OrderID) bool
}

// NoRateLimit is the disabled policy: a constant true, no state, no
// synchronization.
type NoRateLimit struct{}

func (NoRateLimit) TryAcquire(domain.OrderID) bool { return true }

// ActiveRateLimit is a continuous-refill token bucket. Token math rides on
// golang.org/x/time/rate, which is monotonic-clock based and never holds
// more than the configured burst.
type ActiveRateLimit struct {
	cfg     RateLimitConfig
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewActiveRateLimit builds the bucket with initial tokens = capacity.
func NewActiveRateLimit(cfg RateLimitConfig) *ActiveRateLimit {
	var limiter *rate.Limiter
	if cfg.Valid() {
		limiter = rate.NewLimiter(rate.Limit(cfg.RefillRate), cfg.Capacity)
	}
	return &ActiveRateLimit{
		cfg:     cfg,
		limiter: limiter,
		log:     slog.Default().With("module", "ratelimit"),
	}
}

// TryAcquire takes one token, applying the overflow mode when the bucket
// is empty.
func (l *ActiveRateLimit) TryAcquire(id domain.OrderID) bool {
	if l.limiter == nil {
		return true
	}
	if l.limiter.Allow() {
		return true
	}

	res := l.limiter.Reserve()
	wait := res.Delay()

	switch l.cfg.Mode {
	case RateLimitWait:
		time.Sleep(wait)
		return true

	case RateLimitCallback:
		res.Cancel()
		if l.cfg.OnRateLimited != nil {
			l.cfg.OnRateLimited(id, wait)
		}
		return false

	default: // RateLimitReject
		res.Cancel()
		l.log.Warn("order rejected by rate limit",
			slog.Uint64("order_id", uint64(id)),
			slog.Duration("wait", wait))
		return false
	}
}
