package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc extracts the rate limiting key of a request.
type KeyFunc func(c *gin.Context) string

// KeyedRateLimiter stores a rate limiter per caller key.
type KeyedRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	r        rate.Limit
	b        int
}

// NewKeyedRateLimiter creates a new KeyedRateLimiter.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the rate limiter for key, creating it on first use.
func (l *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.limiters[key]; !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = limiter
	}
	return limiter
}

// CallerOrIP keys requests by identity when one was resolved and by client
// IP otherwise.
func CallerOrIP(c *gin.Context) string {
	if id := CallerID(c); id != "" {
		return "id:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter is a middleware that limits requests per key.
func RateLimiter(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = func(c *gin.Context) string { return c.ClientIP() }
	}
	limiter := NewKeyedRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
