package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client IP. Buckets idle for longer
// than the cleanup interval are dropped on the next sweep.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	cleanup  time.Duration
	lastScan time.Time
	now      func() time.Time
}

func NewRateLimiter(requestsPerMin, burst int, cleanup time.Duration) *RateLimiter {
	if requestsPerMin <= 0 {
		requestsPerMin = 100
	}
	if burst <= 0 {
		burst = 1
	}
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burst,
		cleanup:  cleanup,
		lastScan: time.Now(),
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastScan) >= rl.cleanup {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.cleanup {
				delete(rl.visitors, k)
			}
		}
		rl.lastScan = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		c.Next()
	}
}
