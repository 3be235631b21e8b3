package core

import (
	"context"
	"time"

	"symptobuddy/pkg/domain"
)

// Store operation names reported to metrics and traces.
const (
	OpPut           = "store.put"
	OpGet           = "store.get"
	OpGetAll        = "store.get_all"
	OpDelete        = "store.delete"
	OpSchemaVersion = "store.schema_version"
)

// InstrumentedStore decorates a DurableStore with metrics and spans.
type InstrumentedStore struct {
	next    domain.DurableStore
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// Instrument wraps next. Nil recorders fall back to no-ops.
func Instrument(next domain.DurableStore, metrics MetricsRecorder, tracer Tracer) *InstrumentedStore {
	if metrics == nil {
		metrics = NoopMetricsRecorder()
	}
	if tracer == nil {
		tracer = NoopTracer()
	}
	return &InstrumentedStore{next: next, metrics: metrics, tracer: tracer, now: time.Now}
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	span.End(err)
	return err
}

func (s *InstrumentedStore) Put(ctx context.Context, collection domain.Collection, key string, value []byte) error {
	return s.observe(ctx, OpPut, func(ctx context.Context) error {
		return s.next.Put(ctx, collection, key, value)
	})
}

func (s *InstrumentedStore) Get(ctx context.Context, collection domain.Collection, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := s.observe(ctx, OpGet, func(ctx context.Context) error {
		var err error
		value, found, err = s.next.Get(ctx, collection, key)
		return err
	})
	return value, found, err
}

func (s *InstrumentedStore) GetAll(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	var values [][]byte
	err := s.observe(ctx, OpGetAll, func(ctx context.Context) error {
		var err error
		values, err = s.next.GetAll(ctx, collection)
		return err
	})
	return values, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection domain.Collection, key string) error {
	return s.observe(ctx, OpDelete, func(ctx context.Context) error {
		return s.next.Delete(ctx, collection, key)
	})
}

func (s *InstrumentedStore) SchemaVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.observe(ctx, OpSchemaVersion, func(ctx context.Context) error {
		var err error
		v, err = s.next.SchemaVersion(ctx)
		return err
	})
	return v, err
}

func (s *InstrumentedStore) Close() error { return s.next.Close() }
