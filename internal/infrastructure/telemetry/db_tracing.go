package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erp/backoffice/internal/infrastructure/config"
)

// DBTracingConfig holds database instrumentation settings.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in spans, dev only
	SlowQueryThresh time.Duration // default 200ms
	DBSystem        string        // default "postgresql"
}

// DBTracingConfigFrom maps the application telemetry settings
func DBTracingConfigFrom(cfg config.TelemetryConfig) DBTracingConfig {
	return DBTracingConfig{
		Enabled:         cfg.DBTraceEnabled,
		LogFullSQL:      cfg.DBLogFullSQL,
		SlowQueryThresh: cfg.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// DBTracingPlugin registers otelgorm plus timing callbacks that flag slow
// statements on the active span and record a query duration histogram.
type DBTracingPlugin struct {
	config   DBTracingConfig
	logger   *zap.Logger
	duration *Histogram
}

// NewDBTracingPlugin creates a plugin. meter may be nil to skip the histogram.
func NewDBTracingPlugin(cfg DBTracingConfig, meter metric.Meter, logger *zap.Logger) (*DBTracingPlugin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	p := &DBTracingPlugin{config: cfg, logger: logger}
	if meter != nil {
		h, err := NewHistogram(meter, HistogramOpts{
			Name:        "db_query_duration_seconds",
			Description: "Database statement duration",
			Unit:        "s",
			Buckets:     DBDurationBuckets,
		})
		if err != nil {
			return nil, err
		}
		p.duration = h
	}
	return p, nil
}

// Register installs the plugin on db. It does nothing when disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	steps := []error{
		cb.Create().Before("gorm:create").Register("otel_timing:before_create", p.before),
		cb.Query().Before("gorm:query").Register("otel_timing:before_query", p.before),
		cb.Update().Before("gorm:update").Register("otel_timing:before_update", p.before),
		cb.Delete().Before("gorm:delete").Register("otel_timing:before_delete", p.before),
		cb.Row().Before("gorm:row").Register("otel_timing:before_row", p.before),
		cb.Raw().Before("gorm:raw").Register("otel_timing:before_raw", p.before),
		cb.Create().After("gorm:create").Register("otel_timing:after_create", p.after("create")),
		cb.Query().After("gorm:query").Register("otel_timing:after_query", p.after("select")),
		cb.Update().After("gorm:update").Register("otel_timing:after_update", p.after("update")),
		cb.Delete().After("gorm:delete").Register("otel_timing:after_delete", p.after("delete")),
		cb.Row().After("gorm:row").Register("otel_timing:after_row", p.after("row")),
		cb.Raw().After("gorm:raw").Register("otel_timing:after_raw", p.after("raw")),
	}
	return errors.Join(steps...)
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (p *DBTracingPlugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		start, ok := ctx.Value(queryStartTimeKey).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)

		if p.duration != nil {
			p.duration.RecordDuration(ctx, elapsed,
				AttrDBOperation.String(operation),
				AttrDBTable.String(db.Statement.Table))
		}

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			RecordError(span, db.Error)
		}
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}
