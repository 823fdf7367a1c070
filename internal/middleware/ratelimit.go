package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdle  = 3 * time.Minute
	cleanupEvery = time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	b        int
	now      func() time.Time
}

func newRateLimiterStore(r float64, b int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*ipLimiter),
		r:        rate.Limit(r),
		b:        b,
		now:      time.Now,
	}
}

func (rl *rateLimiterStore) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.limiters[ip]; ok {
		v.lastSeen = rl.now()
		return v.limiter
	}
	l := rate.NewLimiter(rl.r, rl.b)
	rl.limiters[ip] = &ipLimiter{limiter: l, lastSeen: rl.now()}
	return l
}

func (rl *rateLimiterStore) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.limiters {
		if rl.now().Sub(v.lastSeen) > limiterIdle {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *rateLimiterStore) cleanup(ctx context.Context) {
	t := time.NewTicker(cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.evictIdle()
		}
	}
}

// RateLimit limits each client IP to rps requests per second with the given
// burst. Idle limiters are dropped until ctx ends.
func RateLimit(ctx context.Context, rps float64, burst int) gin.HandlerFunc {
	store := newRateLimiterStore(rps, burst)
	go store.cleanup(ctx)

	return func(c *gin.Context) {
		if !store.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
