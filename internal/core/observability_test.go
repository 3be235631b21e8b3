package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(recorder.Name(), "symptobuddy_store_metrics_") {
		t.Fatalf("unexpected export name %q", recorder.Name())
	}
	recorder.Observe(context.Background(), OpPut, true, 10*time.Millisecond)
	recorder.Observe(context.Background(), OpPut, false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Second)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS[OpPut] != 15 {
		t.Fatalf("expected 15ms total, snapshot=%+v", snapshot)
	}
	if snapshot.Results[OpPut][statusSuccess] != 1 || snapshot.Results[OpPut][statusError] != 1 {
		t.Fatalf("unexpected results snapshot=%+v", snapshot)
	}
	if len(snapshot.Results) != 1 {
		t.Fatalf("empty operation should be ignored: %+v", snapshot.Results)
	}
	snapshot.Results[OpPut][statusSuccess] = 99
	if recorder.Snapshot().Results[OpPut][statusSuccess] != 1 {
		t.Fatalf("snapshot shares state with recorder")
	}

	v := expvar.Get(recorder.Name())
	if v == nil {
		t.Fatalf("expected expvar export to be registered")
	}
	if !strings.Contains(v.String(), OpPut) {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}

	var buf bytes.Buffer
	if err := recorder.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"durations_ms_total"`) {
		t.Fatalf("unexpected json: %s", buf.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), OpGet)
	span.End(nil)
	span.End(errors.New("ignored"))
	_, failed := tracer.Start(context.Background(), OpDelete)
	failed.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two span entries, got %d", len(entries))
	}
	if entries[0].Operation != OpGet || entries[0].Status != statusSuccess {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if entries[1].Status != statusError || entries[1].Error != "boom" {
		t.Fatalf("unexpected failed span: %+v", entries[1])
	}
	if strings.Count(buf.String(), "\n") != 2 || !strings.Contains(buf.String(), `"operation":"store.get"`) {
		t.Fatalf("unexpected JSON output: %q", buf.String())
	}
}

func TestJSONTraceTracerWithoutWriter(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), OpGetAll)
	span.End(nil)
	if len(tracer.Entries()) != 1 {
		t.Fatalf("expected retained span")
	}
}

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusRecorder: %v", err)
	}
	rec.Observe(context.Background(), OpPut, true, time.Millisecond)
	rec.Observe(context.Background(), OpPut, true, time.Millisecond)
	rec.Observe(context.Background(), OpPut, false, time.Millisecond)
	rec.Observe(context.Background(), "", false, time.Millisecond)

	if got := promtestutil.ToFloat64(rec.operations.WithLabelValues(OpPut, statusSuccess)); got != 2 {
		t.Fatalf("success count = %v", got)
	}
	if got := promtestutil.ToFloat64(rec.operations.WithLabelValues(OpPut, statusError)); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if n := promtestutil.CollectAndCount(rec.latency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}

	again, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	again.Observe(context.Background(), OpPut, true, time.Millisecond)
	if got := promtestutil.ToFloat64(rec.operations.WithLabelValues(OpPut, statusSuccess)); got != 3 {
		t.Fatalf("re-registered recorder should share collectors, got %v", got)
	}
}

func TestNoopObservability(t *testing.T) {
	NoopMetricsRecorder().Observe(context.Background(), OpPut, true, 0)
	ctx := context.Background()
	got, span := NoopTracer().Start(ctx, OpPut)
	if got != ctx {
		t.Fatalf("noop tracer should return the same context")
	}
	span.End(nil)
}
