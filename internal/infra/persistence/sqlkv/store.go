// Package sqlkv implements the durable store contract on top of a single
// database/sql table shared by the SQLite and Postgres backends.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"symptobuddy/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DurableStore = (*Store)(nil)

// Dialect captures the few syntax differences between supported engines.
type Dialect struct {
	Name        string
	placeholder func(n int) string
}

var (
	// SQLite uses positional question-mark placeholders.
	SQLite = Dialect{Name: "sqlite", placeholder: func(int) string { return "?" }}
	// Postgres uses numbered placeholders.
	Postgres = Dialect{Name: "postgres", placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
)

func (d Dialect) p(n int) string { return d.placeholder(n) }

// Migrator applies the records schema and reports the applied version.
type Migrator interface {
	Up(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
}

type queries struct {
	put, get, getAll, del string
}

func buildQueries(d Dialect) queries {
	return queries{
		put: fmt.Sprintf(`INSERT INTO records (collection, record_key, payload, updated_at) VALUES (%s, %s, %s, %s) ON CONFLICT (collection, record_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			d.p(1), d.p(2), d.p(3), d.p(4)),
		get:    fmt.Sprintf(`SELECT payload FROM records WHERE collection = %s AND record_key = %s`, d.p(1), d.p(2)),
		getAll: fmt.Sprintf(`SELECT payload FROM records WHERE collection = %s`, d.p(1)),
		del:    fmt.Sprintf(`DELETE FROM records WHERE collection = %s AND record_key = %s`, d.p(1), d.p(2)),
	}
}

// Store persists each record as one row keyed by (collection, record_key).
type Store struct {
	db       *sql.DB
	dialect  Dialect
	migrator Migrator
	q        queries
	now      func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Open checks the stored schema version and applies pending migrations.
// Opening an already migrated database is a no-op. The store takes ownership
// of db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, migrator Migrator) (*Store, error) {
	version, err := migrator.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s schema version: %w", dialect.Name, err)
	}
	if err := domain.CheckSchemaVersion(version); err != nil {
		return nil, err
	}
	if err := migrator.Up(ctx); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dialect.Name, err)
	}
	return &Store{db: db, dialect: dialect, migrator: migrator, q: buildQueries(dialect), now: time.Now}, nil
}

// Put upserts value under collection/key.
func (s *Store) Put(ctx context.Context, collection domain.Collection, key string, value []byte) error {
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.q.put, string(collection), key, value, s.now().UTC()); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get returns the payload for collection/key; found is false when absent.
func (s *Store) Get(ctx context.Context, collection domain.Collection, key string) ([]byte, bool, error) {
	if err := domain.CheckKey(collection, key); err != nil {
		return nil, false, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.q.get, string(collection), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return payload, true, nil
}

// GetAll returns every payload in collection.
func (s *Store) GetAll(ctx context.Context, collection domain.Collection) ([][]byte, error) {
	if err := domain.CheckCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q.getAll, string(collection))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()
	out := make([][]byte, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// Delete removes collection/key. Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, collection domain.Collection, key string) error {
	if err := domain.CheckKey(collection, key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.del, string(collection), key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return s.migrator.Version(ctx)
}

// Close closes the underlying database once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.db.Close() })
	return s.closeErr
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }
