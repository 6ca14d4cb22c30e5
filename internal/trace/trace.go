// Package trace wires OpenTelemetry span export for latency debugging.
//
// Tracing is off by default. When a trace file is configured (config or
// --trace-file), Setup installs a global tracer provider that appends
// OTLP-JSON lines to that file; the rpc and session packages then record
// spans for outgoing calls and incoming event handling. Without Setup the
// instrumentation stays a no-op.
package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// serviceName identifies weft spans in shared trace files.
const serviceName = "weft"

// Setup opens the trace file, installs the global tracer provider, and
// returns the shutdown function that flushes and closes it.
//
// Parameters:
//   - path: File path traces are appended to as OTLP-JSON lines
//   - version: CLI version recorded on the trace resource
//
// Returns:
//   - func(context.Context) error: Flushes pending spans and closes the file
//   - error: Any error opening the trace file
func Setup(path, version string) (func(context.Context) error, error) {
	exporter, err := NewFileExporter(path)
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.New(context.Background(),
		sdkresource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		_ = exporter.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
