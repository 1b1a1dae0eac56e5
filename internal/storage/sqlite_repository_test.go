package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gif-api/internal/database"
)

func sqliteRepositoryFactory(t *testing.T) Repository {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "gifs.db"))
	require.NoError(t, err)
	repo := NewSQLiteRepository(db)
	t.Cleanup(func() { repo.Close(context.Background()) })
	return repo
}

func TestSQLiteRepositoryCRUD(t *testing.T) {
	RunRepositoryCRUD(t, sqliteRepositoryFactory)
}

func TestSQLiteRepositoryDuplicateURL(t *testing.T) {
	RunRepositoryDuplicateURL(t, sqliteRepositoryFactory)
}

func TestSQLiteRepositoryQueries(t *testing.T) {
	RunRepositoryQueries(t, sqliteRepositoryFactory)
}

func TestSQLiteRepositoryRandomEmpty(t *testing.T) {
	RunRepositoryRandomEmpty(t, sqliteRepositoryFactory)
}

func TestSQLiteRepositoryImport(t *testing.T) {
	RunRepositoryImport(t, sqliteRepositoryFactory)
}

func TestSQLiteRepositoryConcurrentWrites(t *testing.T) {
	RunRepositoryConcurrentWrites(t, sqliteRepositoryFactory)
}

func TestSQLiteRepositoryPing(t *testing.T) {
	repo := sqliteRepositoryFactory(t)
	require.NoError(t, repo.Ping(context.Background()))
}
