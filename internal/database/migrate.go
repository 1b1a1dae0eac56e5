// Package database opens the SQLite and Postgres handles used by the record
// and session stores and applies the embedded goose migrations for each
// dialect before handing them out.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

func migrationsFor(dir string) (fs.FS, error) {
	sub, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return nil, fmt.Errorf("load %s migrations: %w", dir, err)
	}
	return sub, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) (int, error) {
	fsys, err := migrationsFor(dir)
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}
