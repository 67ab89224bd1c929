package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campusgate/edu-gateway/internal/config"
)

func TestIPRateLimiter_PerIPBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(config.RateLimitConfig{AuthRequestsPerMinute: 6, AuthBurst: 2}, func() time.Time { return now })

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"), "other clients keep their own budget")

	now = now.Add(10 * time.Second)
	assert.True(t, l.allow("10.0.0.1"), "one token refills every ten seconds")
	assert.False(t, l.allow("10.0.0.1"))
}

func TestIPRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(config.RateLimitConfig{AuthRequestsPerMinute: 60, AuthBurst: 1}, func() time.Time { return now })

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")
	assert.Len(t, l.limiters, 2)

	now = now.Add(limiterIdleTTL + time.Minute)
	l.allow("10.0.0.3")
	assert.Len(t, l.limiters, 1)
}

func TestIPRateLimiter_Defaults(t *testing.T) {
	l := newIPRateLimiter(config.RateLimitConfig{}, nil)
	assert.Equal(t, 20, l.burst)
}
