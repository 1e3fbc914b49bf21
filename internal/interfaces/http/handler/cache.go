package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

// CacheHandler lets operators drop cached data of their organization
type CacheHandler struct {
	BaseHandler
	invalidator *cache.Invalidator
}

// NewCacheHandler creates a CacheHandler
func NewCacheHandler(invalidator *cache.Invalidator) *CacheHandler {
	return &CacheHandler{invalidator: invalidator}
}

// InvalidateResponse reports a pattern invalidation
type InvalidateResponse struct {
	Resource string `json:"resource,omitempty"`
	Pattern  string `json:"pattern"`
	Deleted  int    `json:"deleted"`
}

// Invalidate handles POST /cache/invalidate. Unlike the invalidations that
// follow writes, failures here are reported to the caller.
func (h *CacheHandler) Invalidate(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req InvalidateCacheRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	resource := cache.Resource(req.Resource)
	if resource != "" && !resource.IsKnown() {
		h.Error(c, dto.ErrCodeValidation, "Unknown cache resource "+req.Resource)
		return
	}

	deleted, err := h.invalidator.Invalidate(c.Request.Context(), orgID, resource)
	if err != nil {
		logger.L(c.Request.Context()).Warn("Cache invalidation failed",
			zap.String("resource", req.Resource),
			zap.Error(err))
		h.Error(c, dto.ErrCodeCacheUnavailable, "Cache is temporarily unavailable")
		return
	}
	h.Success(c, InvalidateResponse{
		Resource: req.Resource,
		Pattern:  cache.Pattern(orgID, resource),
		Deleted:  deleted,
	})
}

// RegisterRoutes mounts the cache endpoints under rg
func (h *CacheHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cache/invalidate", h.Invalidate)
}
