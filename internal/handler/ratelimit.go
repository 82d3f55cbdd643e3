package handler

import (
	"net/http"
	"sync"

	"pagegen-backend/internal/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit caps requests per client IP. It is a pass-through when disabled.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limit := rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	var (
		mu       sync.RWMutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(key string) *rate.Limiter {
		mu.RLock()
		limiter, ok := limiters[key]
		mu.RUnlock()
		if ok {
			return limiter
		}

		mu.Lock()
		defer mu.Unlock()
		if limiter, ok = limiters[key]; ok {
			return limiter
		}
		limiter = rate.NewLimiter(limit, burst)
		limiters[key] = limiter
		return limiter
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
