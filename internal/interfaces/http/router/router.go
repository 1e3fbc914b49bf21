package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration. Public registrars are mounted at
// the engine root; the rest share the versioned API group and its
// middleware.
type Router struct {
	engine        *gin.Engine
	apiVersion    string
	apiMiddleware []gin.HandlerFunc
	public        []RouteRegistrar
	registrars    []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAPIMiddleware adds middleware that runs only inside the API group
func WithAPIMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.apiMiddleware = append(r.apiMiddleware, middleware...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar mounted under the API group
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// RegisterPublic adds a RouteRegistrar mounted at the root, outside the
// API middleware
func (r *Router) RegisterPublic(registrars ...RouteRegistrar) *Router {
	r.public = append(r.public, registrars...)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	root := r.engine.Group("")
	for _, registrar := range r.public {
		registrar.RegisterRoutes(root)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.apiMiddleware) > 0 {
		api.Use(r.apiMiddleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Routes lists the method and path of every registered route
func (r *Router) Routes() []string {
	info := r.engine.Routes()
	out := make([]string, len(info))
	for i, route := range info {
		out[i] = route.Method + " " + route.Path
	}
	return out
}

// RegistrarFunc adapts a function to RouteRegistrar
type RegistrarFunc func(rg *gin.RouterGroup)

// RegisterRoutes implements RouteRegistrar
func (f RegistrarFunc) RegisterRoutes(rg *gin.RouterGroup) {
	f(rg)
}
