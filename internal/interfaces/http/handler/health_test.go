package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthEngine(h *HealthHandler) *gin.Engine {
	engine := gin.New()
	h.RegisterRoutes(engine.Group(""))
	return engine
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler("backoffice", "1.2.3").
			AddCheck("database", func(context.Context) error { return nil })

		w, resp := serve(t, healthEngine(h), http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body HealthResponse
		decodeData(t, resp, &body)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "1.2.3", body.Version)
		assert.Equal(t, "ok", body.Checks["database"])
		assert.NotEmpty(t, body.GoVersion)
	})

	t.Run("failing dependency", func(t *testing.T) {
		h := NewHealthHandler("backoffice", "1.2.3").
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("cache", func(context.Context) error { return errors.New("dial tcp: refused") })

		w, resp := serve(t, healthEngine(h), http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body HealthResponse
		decodeData(t, resp, &body)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "dial tcp: refused", body.Checks["cache"])
		assert.Equal(t, "ok", body.Checks["database"])
	})

	t.Run("ping", func(t *testing.T) {
		w, resp := serve(t, healthEngine(NewHealthHandler("backoffice", "dev")), http.MethodGet, "/ping", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)
	})
}
