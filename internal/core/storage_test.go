package core

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"symptobuddy/internal/config"
	"symptobuddy/internal/infra/persistence/postgres"
	"symptobuddy/pkg/domain"
)

func roundTrip(t *testing.T, store domain.DurableStore) {
	t.Helper()
	ctx := context.Background()
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte(`{"id":"t1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, found, err := store.Get(ctx, domain.CollectionTests, "t1")
	if err != nil || !found || string(value) != `{"id":"t1"}` {
		t.Fatalf("get: %q found=%v err=%v", value, found, err)
	}
}

func TestOpenDurableStoreDrivers(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]config.Storage{
		"memory": {Driver: config.DriverMemory},
		"badger": {Driver: config.DriverBadger, Badger: config.Badger{InMemory: true}},
		"sqlite": {Driver: config.DriverSQLite, SQLite: config.SQLite{Path: filepath.Join(dir, "s.db")}},
		"blob":   {Driver: config.DriverBlob, Blob: config.Blob{Driver: "memory"}},
		"blobfs": {Driver: config.DriverBlob, Blob: config.Blob{Driver: "fs", FSRoot: filepath.Join(dir, "blobs")}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			store, err := OpenDurableStore(context.Background(), cfg, nil)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer func() { _ = store.Close() }()
			roundTrip(t, store)
		})
	}
}

func TestOpenDurableStoreErrors(t *testing.T) {
	if _, err := OpenDurableStore(context.Background(), config.Storage{Driver: "tape"}, nil); err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
	if _, err := OpenDurableStore(context.Background(), config.Storage{Driver: config.DriverBadger}, nil); err == nil {
		t.Fatalf("expected badger path error")
	}
	if _, err := OpenDurableStore(context.Background(), config.Storage{Driver: config.DriverBlob, Blob: config.Blob{Driver: "s3"}}, nil); err == nil {
		t.Fatalf("expected missing bucket error")
	}

	boom := errors.New("no server")
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, boom })
	defer restore()
	if _, err := OpenDurableStore(context.Background(), config.Storage{Driver: config.DriverPostgres}, nil); !errors.Is(err, boom) {
		t.Fatalf("expected postgres open error, got %v", err)
	}
}

func TestNewDurableStoreIsLazyAndInstrumented(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	lazy := NewDurableStore(config.Storage{Driver: config.DriverMemory}, StoreOptions{Metrics: metrics})
	if lazy.Opened() {
		t.Fatalf("store should not open until first use")
	}
	roundTrip(t, lazy)
	if !metrics.has(OpPut, true) || !metrics.has(OpGet, true) {
		t.Fatalf("expected instrumented operations, got %+v", metrics.calls)
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewDurableStoreSurfacesOpenFailure(t *testing.T) {
	lazy := NewDurableStore(config.Storage{Driver: "tape"}, StoreOptions{})
	if _, err := lazy.GetAll(context.Background(), domain.CollectionTests); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
