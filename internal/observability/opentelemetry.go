// Package observability wires the session hub's traces, metrics, and logs
// into OpenTelemetry. Grounded on 0DukePan's internal/observability package;
// the resource model and exporter wiring are the teacher's, retargeted at
// the hub's own service identity instead of a generic HTTP server.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// hubComponent tags every span, metric, and log record emitted by this
// process as belonging to the session hub rather than its REST/WS peers.
const hubComponent = "session-hub"

// InitOpenTelemetry builds the hub's resource identity and starts its
// stdout-backed trace, metric, and log providers, registering the trace and
// metric providers globally. It returns a cleanup function the caller must
// invoke during graceful shutdown to flush every exporter.
func InitOpenTelemetry(serviceName, serviceVersion string) (func(context.Context) error, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		attribute.String("environment", os.Getenv("ENVIRONMENT")),
		attribute.String("hub.component", hubComponent),
		attribute.String("hub.transport", "websocket"),
	)

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(meterProvider)

	// The log provider is built and returned through cleanup's shutdown path
	// even though nothing currently calls otel.SetLoggerProvider: internal/logging
	// writes structured logs via slog to stdout (§ambient logging stack), not
	// through the OTel log bridge, so there is no global to set yet.
	logExporter, err := stdoutlog.New(stdoutlog.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout log exporter: %w", err)
	}
	logProvider := log.NewLoggerProvider(log.WithResource(res), log.WithProcessor(log.NewBatchProcessor(logExporter)))

	cleanup := func(ctx context.Context) error {
		var errs []error
		if err := tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		if err := logProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown log provider: %w", err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("failed to shutdown OpenTelemetry: %v", errs)
		}
		return nil
	}

	slog.Info("opentelemetry initialized", "component", hubComponent, "service", serviceName, "version", serviceVersion)
	return cleanup, nil
}
