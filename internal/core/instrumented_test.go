package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"symptobuddy/internal/infra/persistence/memory"
	"symptobuddy/pkg/domain"
)

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

func TestInstrumentedStoreReportsEveryOperation(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(nil)
	store := Instrument(memory.NewStore(), metrics, tracer)

	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, found, err := store.Get(ctx, domain.CollectionTests, "t1"); err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if values, err := store.GetAll(ctx, domain.CollectionTests); err != nil || len(values) != 1 {
		t.Fatalf("get all: %v %v", values, err)
	}
	if err := store.Delete(ctx, domain.CollectionTests, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v, err := store.SchemaVersion(ctx); err != nil || v != domain.SchemaVersion {
		t.Fatalf("schema version: %d %v", v, err)
	}
	if err := store.Put(ctx, "bogus", "k", nil); !errors.Is(err, domain.ErrUnknownCollection) {
		t.Fatalf("expected unknown collection, got %v", err)
	}

	for _, op := range []string{OpPut, OpGet, OpGetAll, OpDelete, OpSchemaVersion} {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
	}
	if !metrics.has(OpPut, false) {
		t.Fatalf("expected failed put to be recorded")
	}
	entries := tracer.Entries()
	if len(entries) != 6 || entries[5].Status != statusError {
		t.Fatalf("unexpected spans: %+v", entries)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestInstrumentDefaultsToNoop(t *testing.T) {
	store := Instrument(memory.NewStore(), nil, nil)
	if err := store.Put(context.Background(), domain.CollectionProfile, domain.ProfileID, []byte(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
}
