package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports store operation counters and latency histograms.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the store collectors with reg. Collectors
// already registered under the same names are reused.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symptobuddy",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Durable store operations by outcome.",
	}, []string{"operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "symptobuddy",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Durable store operation latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"operation"})

	var err error
	if ops, err = register(reg, ops); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &PrometheusRecorder{operations: ops, latency: latency}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, statusOf(success)).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}
