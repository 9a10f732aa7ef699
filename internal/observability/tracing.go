package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider wraps an sdktrace.TracerProvider along with the file
// handle its exporter writes to, so callers can flush and close it at
// the end of a run.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	file     io.Closer
}

// NewTracerProvider writes spans as newline-delimited JSON to
// <outDir>/trace.jsonl. There is no OTLP exporter here: this is a
// batch CLI with no collector to send spans to, so a local file is
// the only sink that makes sense.
func NewTracerProvider(outDir, runID string) (*TracerProvider, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("observability: mkdir trace dir: %w", err)
	}
	f, err := os.Create(filepath.Join(outDir, "trace.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("observability: create trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("observability: build trace exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName("cdrgen"),
		semconv.ServiceInstanceID(runID),
	))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &TracerProvider{provider: tp, file: f}, nil
}

// Tracer returns a named tracer from the underlying provider.
func (t *TracerProvider) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

// Shutdown flushes buffered spans and closes the trace file.
func (t *TracerProvider) Shutdown(ctx context.Context) error {
	if err := t.provider.Shutdown(ctx); err != nil {
		t.file.Close()
		return fmt.Errorf("observability: shutdown tracer provider: %w", err)
	}
	return t.file.Close()
}
