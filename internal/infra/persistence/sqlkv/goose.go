package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// GooseMigrator runs embedded goose migrations through a scoped provider so
// no package-level goose state is touched.
type GooseMigrator struct {
	provider *goose.Provider
}

// NewGooseMigrator builds a migrator for the .sql files at the root of fsys.
func NewGooseMigrator(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*GooseMigrator, error) {
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &GooseMigrator{provider: provider}, nil
}

// Up applies every pending migration.
func (m *GooseMigrator) Up(ctx context.Context) error {
	_, err := m.provider.Up(ctx)
	return err
}

// Version returns the highest applied migration version (0 for a fresh database).
func (m *GooseMigrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}
