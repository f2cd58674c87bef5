package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"dashmail/utils"
)

// visitor tracks one client IP's token bucket.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP the given number of requests per
// duration, with bursts up to that same count. Idle entries are swept
// opportunistically so the table does not grow without bound.
func RateLimiter(requests int, duration time.Duration) fiber.Handler {
	var (
		mu        sync.Mutex
		visitors  = make(map[string]*visitor)
		lastSweep = time.Now()
	)
	interval := rate.Every(duration / time.Duration(requests))

	sweepLocked := func(now time.Time) {
		if now.Sub(lastSweep) < 5*time.Minute {
			return
		}
		for ip, v := range visitors {
			if now.Sub(v.lastSeen) > 10*time.Minute {
				delete(visitors, ip)
			}
		}
		lastSweep = now
	}

	return func(c *fiber.Ctx) error {
		ip := c.IP()
		now := time.Now()

		mu.Lock()
		sweepLocked(now)
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(interval, requests)}
			visitors[ip] = v
		}
		v.lastSeen = now
		allowed := v.limiter.Allow()
		mu.Unlock()

		if !allowed {
			return utils.NewAppError(fiber.StatusTooManyRequests,
				"Rate limit exceeded. Please try again later.", nil)
		}

		return c.Next()
	}
}
