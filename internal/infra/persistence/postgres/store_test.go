package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"symptobuddy/internal/infra/persistence/postgres/testutil"
	"symptobuddy/internal/infra/persistence/sqlkv"
	"symptobuddy/pkg/domain"
)

const recordsDDL = `CREATE TABLE IF NOT EXISTS records (collection TEXT, record_key TEXT, payload BYTEA, updated_at TIMESTAMPTZ)`

// fakeMigrator applies the records DDL directly; goose itself needs a real server.
type fakeMigrator struct {
	db      *sql.DB
	version int64
	ups     int
	upErr   error
}

func (m *fakeMigrator) Up(ctx context.Context) error {
	m.ups++
	if m.upErr != nil {
		return m.upErr
	}
	if _, err := m.db.ExecContext(ctx, recordsDDL); err != nil {
		return err
	}
	m.version = domain.SchemaVersion
	return nil
}

func (m *fakeMigrator) Version(context.Context) (int64, error) { return m.version, nil }

func openStub(t *testing.T, version int64) (*Store, *testutil.StubConn, *fakeMigrator, error) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	mig := &fakeMigrator{db: db, version: version}
	t.Cleanup(OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil }))
	t.Cleanup(OverrideMigrator(func(*sql.DB) (sqlkv.Migrator, error) { return mig, nil }))
	store, err := NewStore(context.Background(), "")
	return store, conn, mig, err
}

func TestNewStoreMigratesAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	store, conn, mig, err := openStub(t, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if mig.ups != 1 {
		t.Fatalf("expected migration to run once, got %d", mig.ups)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected DDL to be applied, got execs: %v", conn.Execs)
	}
	if store.Dialect().Name != "postgres" {
		t.Fatalf("unexpected dialect %s", store.Dialect().Name)
	}

	if err := store.Put(ctx, domain.CollectionProfile, domain.ProfileID, []byte(`{"id":"user"}`)); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte(`{"id":"t1"}`)); err != nil {
		t.Fatalf("put t1: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte(`{"id":"t1","v":2}`)); err != nil {
		t.Fatalf("replace t1: %v", err)
	}
	if err := store.Put(ctx, domain.CollectionTests, "t2", []byte(`{"id":"t2"}`)); err != nil {
		t.Fatalf("put t2: %v", err)
	}
	got, found, err := store.Get(ctx, domain.CollectionTests, "t1")
	if err != nil || !found || string(got) != `{"id":"t1","v":2}` {
		t.Fatalf("get t1: %s %v %v", got, found, err)
	}
	if _, found, err := store.Get(ctx, domain.CollectionTests, "missing"); err != nil || found {
		t.Fatalf("expected missing, got %v %v", found, err)
	}
	all, err := store.GetAll(ctx, domain.CollectionTests)
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAll: %v %d", err, len(all))
	}
	if err := store.Delete(ctx, domain.CollectionTests, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, domain.CollectionTests, "t1"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if all, _ := store.GetAll(ctx, domain.CollectionTests); len(all) != 1 {
		t.Fatalf("expected one test left, got %d", len(all))
	}
	if v, err := store.SchemaVersion(ctx); err != nil || v != domain.SchemaVersion {
		t.Fatalf("SchemaVersion = %d, %v", v, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewStoreRejectsNewerSchema(t *testing.T) {
	_, _, mig, err := openStub(t, domain.SchemaVersion+1)
	if !errors.Is(err, domain.ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}
	if mig.ups != 0 {
		t.Fatalf("migration must not run against a newer schema")
	}
}

func TestNewStoreErrorPaths(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		t.Cleanup(OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") }))
		if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
			t.Fatalf("expected open error, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		db, conn := testutil.NewStubDB()
		conn.FailPing = true
		t.Cleanup(OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil }))
		if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("migrate", func(t *testing.T) {
		db, _ := testutil.NewStubDB()
		t.Cleanup(OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil }))
		t.Cleanup(OverrideMigrator(func(db *sql.DB) (sqlkv.Migrator, error) {
			return &fakeMigrator{db: db, upErr: errors.New("ddl failed")}, nil
		}))
		if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "migrate postgres") {
			t.Fatalf("expected migrate error, got %v", err)
		}
	})
}

func TestStoreSurfacesQueryFailures(t *testing.T) {
	ctx := context.Background()
	store, conn, _, err := openStub(t, domain.SchemaVersion)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailTables = map[string]bool{"records": true}
	if err := store.Put(ctx, domain.CollectionTests, "t1", []byte("x")); err == nil {
		t.Fatalf("expected put failure")
	}
	if _, _, err := store.Get(ctx, domain.CollectionTests, "t1"); err == nil {
		t.Fatalf("expected get failure")
	}
	if _, err := store.GetAll(ctx, domain.CollectionTests); err == nil {
		t.Fatalf("expected GetAll failure")
	}
	if err := store.Delete(ctx, domain.CollectionTests, "t1"); err == nil {
		t.Fatalf("expected delete failure")
	}
}
