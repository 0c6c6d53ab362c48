// Package observability wires OpenTelemetry tracing for the gamification
// binaries. Spans are exported to stdout; with tracing disabled the global
// no-op provider stays in place.
package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

// Config controls tracer setup.
type Config struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string
	// SampleRatio is the fraction of root spans kept, clamped to [0, 1].
	SampleRatio float64
	PrettyPrint bool
	// Writer receives exported spans. Defaults to stdout.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracing installs a global tracer provider. Setup failures are logged
// and leave tracing off; they never stop the caller from starting.
func InitTracing(ctx context.Context, log *logger.Logger, cfg Config) ShutdownFunc {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled {
		return noopShutdown
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "gamification"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", logger.Err(err))
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		log.Warn("otel exporter init failed, tracing disabled", logger.Err(err))
		return noopShutdown
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("otel tracing initialized",
		logger.String("service", serviceName),
		logger.Float64("sample_ratio", clampRatio(cfg.SampleRatio)),
	)
	return tp.Shutdown
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
