package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"symptobuddy/pkg/domain"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "symptobuddy.db")
	store, err := NewStore(context.Background(), path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, path
}

func TestStoreRoundTripAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTemp(t)
	if store.Path() != path {
		t.Fatalf("path = %s", store.Path())
	}
	if err := store.Put(ctx, domain.CollectionProfile, domain.ProfileID, []byte(`{"id":"user"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte(`{"id":"t1"}`)); err != nil {
		t.Fatalf("put t1: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t2", []byte(`{"id":"t2"}`)); err != nil {
		t.Fatalf("put t2: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte(`{"id":"t1","v":2}`)); err != nil {
		t.Fatalf("replace t1: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	got, found, err := reopened.Get(ctx, domain.CollectionProfile, domain.ProfileID)
	if err != nil || !found || string(got) != `{"id":"user"}` {
		t.Fatalf("profile after reopen: %s %v %v", got, found, err)
	}
	all, err := reopened.GetAll(ctx, domain.CollectionTests)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	values := make([]string, 0, len(all))
	for _, v := range all {
		values = append(values, string(v))
	}
	sort.Strings(values)
	if len(values) != 2 || values[0] != `{"id":"t1","v":2}` || values[1] != `{"id":"t2"}` {
		t.Fatalf("unexpected tests: %v", values)
	}
	if v, err := reopened.SchemaVersion(ctx); err != nil || v != domain.SchemaVersion {
		t.Fatalf("SchemaVersion = %d, %v", v, err)
	}
}

func TestStoreMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)
	t.Cleanup(func() { _ = store.Close() })
	if _, found, err := store.Get(ctx, domain.CollectionTests, "nope"); err != nil || found {
		t.Fatalf("expected not found, got %v %v", found, err)
	}
	if err := store.Delete(ctx, domain.CollectionTests, "nope"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, domain.CollectionTests, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if all, err := store.GetAll(ctx, domain.CollectionTests); err != nil || len(all) != 0 {
		t.Fatalf("expected empty collection, got %d %v", len(all), err)
	}
	if err := store.Put(ctx, "bogus", "k", nil); !errors.Is(err, domain.ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "", nil); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStoreRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	store, path := openTemp(t)
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO goose_db_version (version_id, is_applied) VALUES (?, ?)`, domain.SchemaVersion+1, true); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := NewStore(ctx, path); !errors.Is(err, domain.ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}
}

func TestStoreCloseIsIdempotent(t *testing.T) {
	store, _ := openTemp(t)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := store.Put(context.Background(), domain.CollectionTests, "k", nil); err == nil {
		t.Fatalf("expected error after close")
	}
}
