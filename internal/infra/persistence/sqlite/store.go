// Package sqlite provides the embedded SQLite durable store. The schema is
// managed by goose migrations embedded in the binary.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"symptobuddy/internal/infra/persistence/sqlkv"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultPath is used when no database path is configured.
const DefaultPath = "symptobuddy.db"

// Store is a sqlkv.Store bound to a SQLite file.
type Store struct {
	*sqlkv.Store
	path string
}

// NewStore opens (creating if needed) the SQLite database at path and
// migrates it to the current schema.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	migrator, err := sqlkv.NewGooseMigrator(goose.DialectSQLite3, db, migrations)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store, err := sqlkv.Open(ctx, db, sqlkv.SQLite, migrator)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	// Single connection after migration serialises writers.
	db.SetMaxOpenConns(1)
	return &Store{Store: store, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
