package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows up to the limit per key", func(t *testing.T) {
		rl := NewRateLimiter(3, time.Minute)
		defer rl.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("a"))
		}
		assert.False(t, rl.Allow("a"))
		assert.Zero(t, rl.Remaining("a"))
		assert.True(t, rl.Allow("b"))
		assert.Equal(t, 2, rl.Remaining("b"))
		assert.Equal(t, 3, rl.Remaining("c"))
	})

	t.Run("window resets", func(t *testing.T) {
		rl := NewRateLimiter(1, 50*time.Millisecond)
		defer rl.Stop()

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		time.Sleep(100 * time.Millisecond)
		assert.True(t, rl.Allow("a"))
	})
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	r := newRouter(RequestID(), RateLimit(rl))

	do := func(org string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if org != "" {
			req.Header.Set(OrganizationSlugHeader, org)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("org-a")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do("org-a").Code)

	w = do("org-a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")

	// separate budget per organization
	assert.Equal(t, http.StatusOK, do("org-b").Code)
	assert.Equal(t, http.StatusOK, do("").Code)
}

func TestRateLimitByKey(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	r := newRouter(RateLimitByKey(rl, func(*gin.Context) string { return "global" }))

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/test", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
