package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// TracerProvider overrides the global provider, used by tests
	TracerProvider trace.TracerProvider
}

// Tracing wraps otelgin. Disabled tracing installs a pass-through handler.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// SpanAttributes copies the request and organization ids onto the current
// span and marks 4xx/5xx responses as errors. Place it after Tracing and
// OrganizationContext.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if orgID, ok := GetOrganizationID(c); ok {
			span.SetAttributes(attribute.String("organization.id", orgID.String()))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		msg := "Client Error"
		if status >= http.StatusInternalServerError {
			msg = "Internal Server Error"
		} else if status == http.StatusNotFound {
			msg = "Not Found"
		}
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
