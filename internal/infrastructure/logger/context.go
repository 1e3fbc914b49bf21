package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey         contextKey = "logger"
	requestIDKey      contextKey = "request_id"
	organizationIDKey contextKey = "organization_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, a no-op logger if absent
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID and attaches it to the context logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return WithContext(ctx, FromContext(ctx).With(zap.String("request_id", requestID)))
}

// WithOrganizationID stores the organization ID and attaches it to the context logger
func WithOrganizationID(ctx context.Context, organizationID string) context.Context {
	ctx = context.WithValue(ctx, organizationIDKey, organizationID)
	return WithContext(ctx, FromContext(ctx).With(zap.String("organization_id", organizationID)))
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetOrganizationID retrieves organization ID from context
func GetOrganizationID(ctx context.Context) string {
	if orgID, ok := ctx.Value(organizationIDKey).(string); ok {
		return orgID
	}
	return ""
}

// L returns the context logger enriched with trace_id and span_id when the
// context carries a valid span.
//
// Usage: logger.L(ctx).Info("points redeemed", zap.Int64("points", n))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}

// Ctx is L with a fallback for contexts that carry no logger, such as
// background jobs started outside an HTTP request.
func Ctx(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return WithTraceContext(ctx, l)
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return WithTraceContext(ctx, fallback)
}

// WithTraceContext adds trace_id and span_id from the context's span.
// Returns the logger unchanged if no valid span exists.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
