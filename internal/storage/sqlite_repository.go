package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"gif-api/internal/models"
)

// sqlExecer is the subset of database/sql shared by *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository wraps a migrated SQLite handle. Close closes db.
func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db, now: time.Now}
}

func (r *sqliteRepository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("sqlite repository not initialised")
	}
	return r.db.PingContext(ctx)
}

func (r *sqliteRepository) Close(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func (r *sqliteRepository) withTx(ctx context.Context, fn func(tx sqlExecer) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()
	return fn(tx)
}

func (r *sqliteRepository) CreateGif(ctx context.Context, in models.GifInput) (models.Gif, error) {
	gif := models.Gif{
		Title:      in.Title,
		URL:        in.URL,
		Anime:      in.Anime,
		CreatedAt:  r.now().UTC(),
		Characters: in.Characters,
		Tags:       in.Tags,
	}
	if in.NSFW != nil {
		gif.NSFW = *in.NSFW
	}
	return r.insert(ctx, gif)
}

func (r *sqliteRepository) ImportGif(ctx context.Context, gif models.Gif) (models.Gif, error) {
	if gif.CreatedAt.IsZero() {
		gif.CreatedAt = r.now()
	}
	gif.CreatedAt = gif.CreatedAt.UTC()
	gif.Characters = models.NormalizeLabels(gif.Characters)
	gif.Tags = models.NormalizeLabels(gif.Tags)
	return r.insert(ctx, gif)
}

func (r *sqliteRepository) insert(ctx context.Context, gif models.Gif) (models.Gif, error) {
	err := r.withTx(ctx, func(tx sqlExecer) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO gifs (title, url, nsfw, anime, created_at) VALUES (?, ?, ?, ?, ?)",
			gif.Title, gif.URL, gif.NSFW, gif.Anime, gif.CreatedAt)
		if err != nil {
			return sqliteWriteError("insert gif", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read gif id: %w", err)
		}
		gif.ID = id
		if err := sqliteReplaceLabels(ctx, tx, tagLabels, id, gif.Tags); err != nil {
			return err
		}
		return sqliteReplaceLabels(ctx, tx, characterLabels, id, gif.Characters)
	})
	if err != nil {
		return models.Gif{}, err
	}
	return r.GetGif(ctx, gif.ID)
}

func (r *sqliteRepository) UpdateGif(ctx context.Context, id int64, update models.GifUpdate) (models.Gif, error) {
	err := r.withTx(ctx, func(tx sqlExecer) error {
		current, err := scanGif(tx.QueryRowContext(ctx, selectGifByID, id))
		if err != nil {
			return notFound("load gif", err)
		}
		next := applyUpdate(current, update)
		if _, err := tx.ExecContext(ctx, updateGifRow, next.Title, next.URL, next.NSFW, next.Anime, id); err != nil {
			return sqliteWriteError("update gif", err)
		}
		if update.Tags.Set {
			if err := sqliteReplaceLabels(ctx, tx, tagLabels, id, next.Tags); err != nil {
				return err
			}
		}
		if update.Characters.Set {
			if err := sqliteReplaceLabels(ctx, tx, characterLabels, id, next.Characters); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Gif{}, err
	}
	return r.GetGif(ctx, id)
}

func (r *sqliteRepository) DeleteGif(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteGifRow, id)
	if err != nil {
		return fmt.Errorf("delete gif %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete gif %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) GetGif(ctx context.Context, id int64) (models.Gif, error) {
	return r.getOne(ctx, selectGifByID, id)
}

func (r *sqliteRepository) FindGifByURL(ctx context.Context, url string) (models.Gif, error) {
	return r.getOne(ctx, selectGifByURL, url)
}

func (r *sqliteRepository) getOne(ctx context.Context, query string, args ...any) (models.Gif, error) {
	gif, err := scanGif(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return models.Gif{}, notFound("load gif", err)
	}
	gifs := []models.Gif{gif}
	if err := r.loadLabels(ctx, gifs); err != nil {
		return models.Gif{}, err
	}
	return gifs[0], nil
}

func (r *sqliteRepository) SearchByTitle(ctx context.Context, params SearchParams) ([]models.Gif, error) {
	query, args := searchQuery(params)
	return r.list(ctx, query, args...)
}

func (r *sqliteRepository) RandomGif(ctx context.Context, filter RandomFilter, mode models.NSFWMode) (models.Gif, error) {
	query, args, err := randomQuery(filter, mode)
	if err != nil {
		return models.Gif{}, err
	}
	return r.getOne(ctx, query, args...)
}

func (r *sqliteRepository) ListGifs(ctx context.Context, afterID int64, limit int) ([]models.Gif, error) {
	return r.list(ctx, selectGifsAfter, afterID, limit)
}

func (r *sqliteRepository) CountGifs(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countGifs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count gifs: %w", err)
	}
	return count, nil
}

func (r *sqliteRepository) ListTags(ctx context.Context, mode models.NSFWMode) ([]string, error) {
	query, args := listTagsQuery(mode)
	return r.names(ctx, query, args...)
}

func (r *sqliteRepository) ListAnime(ctx context.Context) ([]string, error) {
	return r.names(ctx, listAnime)
}

func (r *sqliteRepository) ListCharacters(ctx context.Context) ([]string, error) {
	return r.names(ctx, characterLabels.distinctNames())
}

func (r *sqliteRepository) list(ctx context.Context, query string, args ...any) ([]models.Gif, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query gifs: %w", err)
	}
	defer rows.Close()

	gifs := make([]models.Gif, 0)
	for rows.Next() {
		gif, err := scanGif(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gif: %w", err)
		}
		gifs = append(gifs, gif)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gifs: %w", err)
	}
	if err := r.loadLabels(ctx, gifs); err != nil {
		return nil, err
	}
	return gifs, nil
}

func (r *sqliteRepository) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return names, nil
}

func (r *sqliteRepository) loadLabels(ctx context.Context, gifs []models.Gif) error {
	if len(gifs) == 0 {
		return nil
	}
	ids := gifIDs(gifs)
	tags, err := r.labelsFor(ctx, tagLabels, ids)
	if err != nil {
		return err
	}
	characters, err := r.labelsFor(ctx, characterLabels, ids)
	if err != nil {
		return err
	}
	attachLabels(gifs, tags, characters)
	return nil
}

func (r *sqliteRepository) labelsFor(ctx context.Context, kind labelKind, ids []int64) (map[int64][]string, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := kind.namesFor() + " IN (" + placeholders(len(ids)) + ") ORDER BY l.name"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind.table, err)
	}
	defer rows.Close()

	out := make(map[int64][]string, len(ids))
	for rows.Next() {
		var (
			gifID int64
			name  string
		)
		if err := rows.Scan(&gifID, &name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.table, err)
		}
		out[gifID] = append(out[gifID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind.table, err)
	}
	return out, nil
}

func sqliteReplaceLabels(ctx context.Context, tx sqlExecer, kind labelKind, gifID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, kind.unlinkAll(), gifID); err != nil {
		return fmt.Errorf("clear %s: %w", kind.table, err)
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, kind.insertName(), name); err != nil {
			return fmt.Errorf("insert %s %q: %w", kind.table, name, err)
		}
		var labelID int64
		if err := tx.QueryRowContext(ctx, kind.selectID(), name).Scan(&labelID); err != nil {
			return fmt.Errorf("resolve %s %q: %w", kind.table, name, err)
		}
		if _, err := tx.ExecContext(ctx, kind.link(), gifID, labelID); err != nil {
			return fmt.Errorf("link %s %q: %w", kind.table, name, err)
		}
	}
	return nil
}

func sqliteWriteError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: %w", op, ErrDuplicateURL)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
