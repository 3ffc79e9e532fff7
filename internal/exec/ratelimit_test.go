package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connector_go/internal/domain"
)

func TestRateLimitRejectMode(t *testing.T) {
	l := NewActiveRateLimit(RateLimitConfig{
		Capacity:   1,
		RefillRate: 1,
		Mode:       RateLimitReject,
	})

	assert.True(t, l.TryAcquire(1), "first call has a full bucket")
	assert.False(t, l.TryAcquire(2), "second immediate call must be rejected")
}

func TestRateLimitWaitMode(t *testing.T) {
	l := NewActiveRateLimit(RateLimitConfig{
		Capacity:   1,
		RefillRate: 50, // one token per 20ms
		Mode:       RateLimitWait,
	})

	require.True(t, l.TryAcquire(1))
	start := time.Now()
	assert.True(t, l.TryAcquire(2), "wait mode always proceeds")
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond,
		"wait mode must sleep for the token deficit")
}

func TestRateLimitCallbackMode(t *testing.T) {
	var gotID domain.OrderID
	var gotWait time.Duration
	l := NewActiveRateLimit(RateLimitConfig{
		Capacity:   1,
		RefillRate: 1,
		Mode:       RateLimitCallback,
		OnRateLimited: func(id domain.OrderID, wait time.Duration) {
			gotID = id
			gotWait = wait
		},
	})

	require.True(t, l.TryAcquire(7))
	assert.False(t, l.TryAcquire(8))
	assert.Equal(t, domain.OrderID(8), gotID)
	assert.Greater(t, gotWait, time.Duration(0))
}

func TestRateLimitBucketRefills(t *testing.T) {
	l := NewActiveRateLimit(RateLimitConfig{
		Capacity:   1,
		RefillRate: 100, // 10ms per token
		Mode:       RateLimitReject,
	})

	require.True(t, l.TryAcquire(1))
	require.False(t, l.TryAcquire(2))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.TryAcquire(3), "bucket must refill over time")
}

func TestRateLimitInvalidConfigPassesThrough(t *testing.T) {
	l := NewActiveRateLimit(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, l.TryAcquire(domain.OrderID(i)))
	}
}

func TestNoRateLimitAlwaysTrue(t *testing.T) {
	var p RateLimitPolicy = NoRateLimit{}
	for i := 0; i < 1000; i++ {
		assert.True(t, p.TryAcquire(domain.OrderID(i)))
	}
}
