// Package core selects, opens and instruments the durable store backends.
package core

import (
	"context"
	"time"
)

// MetricsRecorder observes the outcome and latency of store operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per store operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error.
type TraceSpan interface {
	End(err error)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// NoopMetricsRecorder discards observations.
func NoopMetricsRecorder() MetricsRecorder { return noopMetricsRecorder{} }

// NoopTracer returns a tracer whose spans do nothing.
func NoopTracer() Tracer { return noopTracer{} }
