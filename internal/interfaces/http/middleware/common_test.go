package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/test", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestCORS(t *testing.T) {
	t.Run("default refuses cross-origin requests", func(t *testing.T) {
		r := newRouter(CORS(DefaultCORSConfig()))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://malicious.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allows listed origins with credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"http://localhost:3000"}
		r := newRouter(CORS(cfg))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), OrganizationSlugHeader)
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("wildcard never sends credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"*"}
		r := newRouter(CORS(cfg))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight always answers 204", func(t *testing.T) {
		r := newRouter(CORS(DefaultCORSConfig()))
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "http://some-origin.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { seen = GetRequestID(c) })

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Len(t, seen, 32)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("keeps and truncates client ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 300))
		r.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, MaxRequestIDLength)
	})
}

func TestSecure(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(Secure()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestBodyLimit(t *testing.T) {
	r := newRouter(RequestID(), BodyLimit(10))

	t.Run("declared oversize body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 11))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")
	})

	t.Run("streamed oversize body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 11)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("small body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("ok")))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
