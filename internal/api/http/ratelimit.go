package http

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/campusgate/edu-gateway/internal/config"
	apperrors "github.com/campusgate/edu-gateway/pkg/util/errorutil"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(cfg config.RateLimitConfig, now func() time.Time) *ipRateLimiter {
	if now == nil {
		now = time.Now
	}
	perMinute := cfg.AuthRequestsPerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	burst := cfg.AuthBurst
	if burst <= 0 {
		burst = perMinute
	}
	return &ipRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		lastSweep: now(),
		now:       now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for key, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// RateLimit rejects callers exceeding the configured per-IP budget with 429.
func RateLimit(cfg config.RateLimitConfig) fiber.Handler {
	limiter := newIPRateLimiter(cfg, nil)
	retryAfter := strconv.Itoa(int(time.Duration(float64(time.Second)/float64(limiter.limit)).Seconds()) + 1)
	return func(c *fiber.Ctx) error {
		if !limiter.allow(c.IP()) {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return apperrors.NewRateLimited()
		}
		return c.Next()
	}
}
