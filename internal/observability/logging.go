// Package observability wires the ambient logging, tracing, and
// metrics stack shared across a run: zap for structured logs, an
// otel tracer writing spans to a local file, and a Prometheus
// registry snapshotted to a local text file. None of these talk to
// the network; the generator has no live backend to report to.
package observability

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger. In production mode it writes JSON to
// stderr with an ISO8601 timestamp; in verbose/dev mode it writes a
// human-readable console encoding.
func NewLogger(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("observability: build logger: %w", err)
	}
	return logger, nil
}

// NewRunID generates a correlation ID attached to every log line and
// trace span for a single invocation, letting a shard's failure be
// traced back to the run that produced it.
func NewRunID() string {
	return uuid.NewString()
}
