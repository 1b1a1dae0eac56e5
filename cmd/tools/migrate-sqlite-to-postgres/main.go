// Command migrate-sqlite-to-postgres copies every gif from a SQLite database
// into Postgres and verifies the row counts afterwards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gif-api/internal/database"
	"gif-api/internal/storage"
)

const defaultBatchSize = 200

type copyResult struct {
	Source  int
	Copied  int
	Skipped int
}

func main() {
	sqlitePath := flag.String("sqlite", "gifs.db", "path to the SQLite database to copy from")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	batchSize := flag.Int("batch-size", defaultBatchSize, "gifs read per page")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dsn := strings.TrimSpace(*postgresDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("GIFAPI_POSTGRES_DSN"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		logger.Error("postgres DSN required", "hint", "set --postgres-dsn, GIFAPI_POSTGRES_DSN, or DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, *sqlitePath)
	if err != nil {
		logger.Error("failed to open sqlite database", "path", *sqlitePath, "error", err)
		os.Exit(1)
	}
	src := storage.NewSQLiteRepository(db)
	defer src.Close(ctx)

	pool, err := database.OpenPostgres(ctx, database.NewPostgresConfig(dsn, database.WithPostgresApplicationName("gif-api-migrate")))
	if err != nil {
		logger.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	dst := storage.NewPostgresRepository(pool)
	defer dst.Close(ctx)

	result, err := copyGifs(ctx, src, dst, *batchSize, logger)
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migration completed", "source", result.Source, "copied", result.Copied, "skipped", result.Skipped)
}

// copyGifs pages through src by id and imports each gif into dst. Gifs whose
// url already exists in dst are skipped so the copy can be re-run.
func copyGifs(ctx context.Context, src, dst storage.Repository, batchSize int, logger *slog.Logger) (copyResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	var result copyResult

	sourceCount, err := src.CountGifs(ctx)
	if err != nil {
		return result, fmt.Errorf("count source gifs: %w", err)
	}
	result.Source = sourceCount
	before, err := dst.CountGifs(ctx)
	if err != nil {
		return result, fmt.Errorf("count destination gifs: %w", err)
	}
	logger.Info("starting copy", "source", sourceCount, "destination", before)

	var afterID int64
	for {
		page, err := src.ListGifs(ctx, afterID, batchSize)
		if err != nil {
			return result, fmt.Errorf("list source gifs after %d: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}
		for _, gif := range page {
			if _, err := dst.ImportGif(ctx, gif); err != nil {
				if errors.Is(err, storage.ErrDuplicateURL) {
					result.Skipped++
					logger.Debug("skipping existing gif", "url", gif.URL)
					continue
				}
				return result, fmt.Errorf("import gif %d: %w", gif.ID, err)
			}
			result.Copied++
		}
		afterID = page[len(page)-1].ID
		logger.Info("copied batch", "through_id", afterID, "copied", result.Copied, "skipped", result.Skipped)
	}

	return result, verifyCounts(ctx, dst, before, result)
}

func verifyCounts(ctx context.Context, dst storage.Repository, before int, result copyResult) error {
	if result.Copied+result.Skipped != result.Source {
		return fmt.Errorf("mismatch for source: expected %d, processed %d", result.Source, result.Copied+result.Skipped)
	}
	after, err := dst.CountGifs(ctx)
	if err != nil {
		return fmt.Errorf("count destination gifs: %w", err)
	}
	if expected := before + result.Copied; after != expected {
		return fmt.Errorf("mismatch for destination: expected %d, got %d", expected, after)
	}
	return nil
}
