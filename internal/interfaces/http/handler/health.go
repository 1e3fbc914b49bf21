package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports process and dependency health
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	timeout   time.Duration
	checks    map[string]HealthCheck
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(name, version string) *HealthHandler {
	return &HealthHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
		checks:    make(map[string]HealthCheck),
	}
}

// AddCheck registers a named dependency probe
func (h *HealthHandler) AddCheck(name string, check HealthCheck) *HealthHandler {
	h.checks[name] = check
	return h
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. Any failing check turns the answer into 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:    "healthy",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(names)),
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}

// Ping handles GET /ping
func (h *HealthHandler) Ping(c *gin.Context) {
	h.Success(c, gin.H{"message": "pong", "timestamp": time.Now().Format(time.RFC3339)})
}

// RegisterRoutes mounts the health endpoints under rg
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ping", h.Ping)
}
