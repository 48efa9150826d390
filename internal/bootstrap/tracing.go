package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skala/skip-session/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const exporterTimeout = 10 * time.Second

// TracingOptions contains the inputs for InitTracing.
type TracingOptions struct {
	Config config.ObservabilityTracingConfig
	Logger *slog.Logger
	// Exporter replaces the OTLP exporter when set.
	Exporter sdktrace.SpanExporter
}

// Tracing holds the provider and propagator used to instrument outbound
// requests.
type Tracing struct {
	Provider   *sdktrace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// InitTracing builds a tracer provider and installs it, together with a
// W3C trace-context propagator, as the global OpenTelemetry defaults. It
// returns nil when tracing is disabled.
func InitTracing(ctx context.Context, opts TracingOptions) (*Tracing, error) {
	cfg := opts.Config
	if !cfg.Enabled {
		return nil, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	exporter := opts.Exporter
	if exporter == nil && cfg.IsExportEnabled() {
		exporter, err = newOTLPExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(prop)

	logger.InfoContext(ctx, "tracing initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"exporting", exporter != nil,
	)
	return &Tracing{Provider: tp, Propagator: prop}, nil
}

//nolint:ireturn // the exporter is consumed through the SpanExporter interface.
func newOTLPExporter(ctx context.Context, cfg config.ObservabilityTracingConfig) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return exp, nil
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.Provider == nil {
		return nil
	}
	if err := t.Provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
