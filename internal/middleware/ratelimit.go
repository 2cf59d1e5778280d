package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/walkaround-go/internal/monitoring"
	"github.com/jengzang/walkaround-go/internal/timeutil"
	"github.com/jengzang/walkaround-go/pkg/response"
)

var rateLimitLog = monitoring.Component("RateLimit")

// RateLimiter keeps a sliding window of request times per client
type RateLimiter struct {
	clock  timeutil.Clock
	limit  int           // Maximum requests per window
	window time.Duration // Time window

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration, clock timeutil.Clock) *RateLimiter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RateLimiter{
		clock:     clock,
		limit:     limit,
		window:    window,
		requests:  make(map[string][]time.Time),
		lastSweep: clock.Now(),
	}
}

// recent drops the times older than the window
func (rl *RateLimiter) recent(times []time.Time, now time.Time) []time.Time {
	valid := times[:0]
	for _, t := range times {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	return valid
}

// sweep forgets idle clients once per window
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for client, times := range rl.requests {
		if valid := rl.recent(times, now); len(valid) == 0 {
			delete(rl.requests, client)
		} else {
			rl.requests[client] = valid
		}
	}
}

// Allow records a request from client and reports whether it is within the limit
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	rl.sweep(now)

	valid := rl.recent(rl.requests[client], now)
	if len(valid) >= rl.limit {
		rl.requests[client] = valid
		return false
	}
	rl.requests[client] = append(valid, now)
	return true
}

// RateLimit middleware limits requests per client IP. A limit of 0 or less
// disables it.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.limit <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			rateLimitLog.Printf("rejected %s %s from %s", c.Request.Method, c.Request.URL.Path, ip)
			response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}
