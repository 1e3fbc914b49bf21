package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"

	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

// maxTrackedClients bounds the limiter's memory; the least recently
// seen client is forgotten first.
const maxTrackedClients = 100000

// RateLimiter is a fixed-window limiter keyed by client. Windows expire
// with their ttlcache entry, so idle clients cost nothing.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows *ttlcache.Cache[string, *rateWindow]
}

type rateWindow struct {
	used int
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// Call Stop to release its expiry goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:  limit,
		window: window,
		windows: ttlcache.New(
			ttlcache.WithTTL[string, *rateWindow](window),
			ttlcache.WithCapacity[string, *rateWindow](maxTrackedClients),
			ttlcache.WithDisableTouchOnHit[string, *rateWindow](),
		),
	}
	go rl.windows.Start()
	return rl
}

// Stop ends the background expiry loop
func (rl *RateLimiter) Stop() {
	rl.windows.Stop()
}

// Allow reports whether one more request from key fits in its window
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	item := rl.windows.Get(key)
	if item == nil {
		rl.windows.Set(key, &rateWindow{used: 1}, ttlcache.DefaultTTL)
		return true
	}
	w := item.Value()
	if w.used >= rl.limit {
		return false
	}
	w.used++
	return true
}

// Remaining returns the number of requests key may still make in its window
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	item := rl.windows.Get(key)
	if item == nil {
		return rl.limit
	}
	return max(rl.limit-item.Value().used, 0)
}

// RateLimit limits requests per client IP, scoped by organization header
// so tenants behind one NAT do not starve each other.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		key := c.ClientIP()
		if org := c.GetHeader(OrganizationIDHeader); org != "" {
			key = org + ":" + key
		} else if slug := c.GetHeader(OrganizationSlugHeader); slug != "" {
			key = slug + ":" + key
		}
		return key
	})
}

// RateLimitByKey limits requests per keyFunc(c)
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if !limiter.Allow(key) {
			abort(c, dto.ErrCodeRateLimited, "Too many requests. Please try again later.")
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
