package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
)

func TestCacheHandler_Invalidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := uuid.New()

	seed := func() {
		require.NoError(t, h.cache.Set(ctx, cache.SearchKey(h.org.ID, "jane"), []byte("{}"), time.Minute))
		require.NoError(t, h.cache.Set(ctx, cache.Key(cache.ResourceCustomers, h.org.ID, "1"), []byte("{}"), time.Minute))
		require.NoError(t, h.cache.Set(ctx, cache.SearchKey(other, "jane"), []byte("{}"), time.Minute))
	}

	t.Run("single resource", func(t *testing.T) {
		seed()
		w, resp := h.do(t, http.MethodPost, "/api/v1/cache/invalidate", InvalidateCacheRequest{Resource: "customer_search"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out InvalidateResponse
		decodeData(t, resp, &out)
		assert.Equal(t, 1, out.Deleted)
		assert.Equal(t, cache.Pattern(h.org.ID, cache.ResourceCustomerSearch), out.Pattern)
		assert.Equal(t, 2, h.cache.Len())
	})

	t.Run("whole organization without a body", func(t *testing.T) {
		seed()
		w, resp := h.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out InvalidateResponse
		decodeData(t, resp, &out)
		assert.Equal(t, 2, out.Deleted)

		_, ok, err := h.cache.Get(ctx, cache.SearchKey(other, "jane"))
		require.NoError(t, err)
		assert.True(t, ok, "other organizations keep their keys")
	})

	t.Run("unknown resource", func(t *testing.T) {
		w, resp := h.do(t, http.MethodPost, "/api/v1/cache/invalidate", InvalidateCacheRequest{Resource: "payroll"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})
}

// brokenCache fails every key listing
type brokenCache struct{ cache.Cache }

func (brokenCache) Keys(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestCacheHandler_InvalidateUnavailable(t *testing.T) {
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.OrganizationIDKey, uuid.New())
	})
	NewCacheHandler(cache.NewInvalidator(brokenCache{}, nil)).RegisterRoutes(engine.Group(""))

	w, resp := serve(t, engine, http.MethodPost, "/cache/invalidate", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeCacheUnavailable, resp.Error.Code)
}

func TestCacheHandler_RequiresOrganization(t *testing.T) {
	engine := gin.New()
	NewCacheHandler(cache.NewInvalidator(cache.NewMemoryCache(), nil)).RegisterRoutes(engine.Group(""))

	w, resp := serve(t, engine, http.MethodPost, "/cache/invalidate", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeOrganization, resp.Error.Code)
}
