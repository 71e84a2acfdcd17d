// Package telemetry owns the process's observability setup: an
// OpenTelemetry tracer provider exporting over OTLP HTTP (or stdout for
// development), and the Prometheus registry the /metrics endpoint
// serves.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/praetorworks/praetor/pkg/version"
)

const scopeName = "github.com/praetorworks/praetor"

// Config selects the span exporter. With neither OTLPEndpoint nor
// Stdout set, tracing is a no-op and only metrics are live.
type Config struct {
	OTLPEndpoint string
	Stdout       bool
}

// Init sets up the global tracer provider. It returns a shutdown
// function that flushes pending spans; call it on process exit.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch {
	case cfg.OTLPEndpoint != "":
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	case cfg.Stdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build span exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(version.AppName),
			semconv.ServiceVersion(version.GitCommit),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled",
		"otlp_endpoint", cfg.OTLPEndpoint, "stdout", cfg.Stdout)
	return tp.Shutdown, nil
}

// Tracer returns the engine's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}
