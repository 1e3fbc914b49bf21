package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/infrastructure/config"
)

// Providers bundles the trace, metric and log providers of the process.
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
	Logs   *LoggerProvider
}

// Setup creates every provider from the application settings. Metrics
// follow MetricsEnabled and are exported only when telemetry is enabled.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	base := ConfigFrom(cfg)

	tp, err := NewTracerProvider(ctx, base, logger)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled && cfg.MetricsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.MetricsInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	lp, err := NewLoggerProvider(ctx, base, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &Providers{Tracer: tp, Meter: mp, Logs: lp}, nil
}

// Shutdown flushes and stops every provider, logs last
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Tracer.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
	)
}
