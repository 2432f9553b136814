// Package telemetry wires the process-wide OpenTelemetry TracerProvider and
// MeterProvider that internal/graphbackend's span-per-call and
// retry-count instruments (SPEC_FULL §4's C13 Observability) report
// through.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config controls how spans/metrics are exported. The zero value exports
// both to stdout, which is always safe: it never depends on a collector
// being reachable.
type Config struct {
	ServiceName string

	// OTLPMetricEndpoint, when non-empty, switches the metric exporter from
	// stdout to OTLP/HTTP against this collector endpoint (e.g.
	// "localhost:4318"). Tracing always exports to stdout: SPEC_FULL names
	// only the metric path as OTLP-capable.
	OTLPMetricEndpoint string
}

// ConfigFromEnv reads OTEL_EXPORTER_OTLP_ENDPOINT, matching the standard
// OpenTelemetry SDK environment variable.
func ConfigFromEnv(serviceName string) Config {
	return Config{
		ServiceName:        serviceName,
		OTLPMetricEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// Shutdown flushes and stops both providers. Callers should defer it.
type Shutdown func(ctx context.Context) error

// Setup installs the global TracerProvider and MeterProvider and returns a
// combined shutdown func. It never returns an error for being unable to
// reach an OTLP collector at call time — exporter construction only fails
// on malformed configuration, not on connection, since export happens
// lazily on the first flush.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)),
		resource.WithProcess(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricReader, err := newMetricReader(ctx, cfg.OTLPMetricEndpoint)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(metricReader),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}

// newMetricReader builds an OTLP/HTTP periodic reader when endpoint is set,
// otherwise a stdout reader suitable for local development.
func newMetricReader(ctx context.Context, endpoint string) (metric.Reader, error) {
	if endpoint == "" {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return metric.NewPeriodicReader(exporter), nil
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	return metric.NewPeriodicReader(exporter), nil
}
