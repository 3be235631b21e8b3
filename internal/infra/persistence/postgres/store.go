// Package postgres provides a Postgres-backed durable store. The records
// table is managed by embedded goose migrations applied on open.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/pressly/goose/v3"

	"symptobuddy/internal/infra/persistence/sqlkv"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/symptobuddy?sslmode=disable"
)

var (
	sqlOpen     = sql.Open
	newMigrator = gooseMigrator
	openMu      sync.Mutex
)

// Store is a sqlkv.Store bound to a Postgres database.
type Store struct {
	*sqlkv.Store
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to DefaultDSN) and migrates it to the current schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	open, migrate := sqlOpen, newMigrator
	openMu.Unlock()
	db, err := open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	migrator, err := migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store, err := sqlkv.Open(ctx, db, sqlkv.Postgres, migrator)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: store}, nil
}

func gooseMigrator(db *sql.DB) (sqlkv.Migrator, error) {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, err
	}
	return sqlkv.NewGooseMigrator(goose.DialectPostgres, db, migrations)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// OverrideMigrator swaps the migrator factory for tests and returns a restore function.
func OverrideMigrator(fn func(*sql.DB) (sqlkv.Migrator, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := newMigrator
	newMigrator = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		newMigrator = prev
	}
}
