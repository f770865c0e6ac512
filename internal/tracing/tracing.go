// Package tracing sets up the optional OpenTelemetry pipeline: spans from
// the agent loop are exported as pretty-printed JSON to a writer (a file
// named by WOLO_TRACE, or stderr). Off unless explicitly enabled; the
// global tracer provider stays a no-op otherwise, so instrumented code
// pays nothing.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// serviceName labels every exported span.
const serviceName = "wolo"

// Setup installs a trace provider exporting to w and returns its shutdown
// hook. Call shutdown on every termination path so batched spans flush.
func Setup(w io.Writer) (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless()),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// SetupFromEnv enables tracing when WOLO_TRACE is set: "stderr" (or "1")
// exports to stderr, anything else is treated as a file path opened in
// append mode. Returns a no-op shutdown when tracing is off or the target
// can't be opened; tracing problems never fail a run.
func SetupFromEnv() func(context.Context) error {
	target := os.Getenv("WOLO_TRACE")
	if target == "" {
		return func(context.Context) error { return nil }
	}

	var w io.Writer
	switch target {
	case "1", "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return func(context.Context) error { return nil }
		}
		w = f
	}

	shutdown, err := Setup(w)
	if err != nil {
		return func(context.Context) error { return nil }
	}
	return shutdown
}

// Tracer returns the named tracer off the global provider; a no-op tracer
// until Setup ran.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(serviceName + "/" + name)
}
