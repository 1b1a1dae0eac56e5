package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gif-api/internal/models"
)

const pgUniqueViolation = "23505"

type postgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresRepository wraps a pool whose database has been migrated.
// Close closes the pool.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool, now: time.Now}
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("postgres repository not initialised")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) CreateGif(ctx context.Context, in models.GifInput) (models.Gif, error) {
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

func (r *postgresRepository) ImportGif(ctx context.Context, gif models.Gif) (models.Gif, error) {
	if gif.CreatedAt.IsZero() {
		gif.CreatedAt = r.now()
	}
	gif.CreatedAt = gif.CreatedAt.UTC()
	gif.Characters = models.NormalizeLabels(gif.Characters)
	gif.Tags = models.NormalizeLabels(gif.Tags)
	return r.insert(ctx, gif)
}

func (r *postgresRepository) insert(ctx context.Context, gif models.Gif) (models.Gif, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			"INSERT INTO gifs (title, url, nsfw, anime, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
			gif.Title, gif.URL, gif.NSFW, gif.Anime, gif.CreatedAt).Scan(&gif.ID)
		if err != nil {
			return postgresWriteError("insert gif", err)
		}
		if err := postgresReplaceLabels(ctx, tx, tagLabels, gif.ID, gif.Tags); err != nil {
			return err
		}
		return postgresReplaceLabels(ctx, tx, characterLabels, gif.ID, gif.Characters)
	})
	if err != nil {
		return models.Gif{}, err
	}
	return r.GetGif(ctx, gif.ID)
}

func (r *postgresRepository) UpdateGif(ctx context.Context, id int64, update models.GifUpdate) (models.Gif, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanGif(tx.QueryRow(ctx, rebind(selectGifByID)+" FOR UPDATE", id))
		if err != nil {
			return pgNotFound("load gif", err)
		}
		next := applyUpdate(current, update)
		if _, err := tx.Exec(ctx, rebind(updateGifRow), next.Title, next.URL, next.NSFW, next.Anime, id); err != nil {
			return postgresWriteError("update gif", err)
		}
		if update.Tags.Set {
			if err := postgresReplaceLabels(ctx, tx, tagLabels, id, next.Tags); err != nil {
				return err
			}
		}
		if update.Characters.Set {
			if err := postgresReplaceLabels(ctx, tx, characterLabels, id, next.Characters); err != nil {
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

func (r *postgresRepository) DeleteGif(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, rebind(deleteGifRow), id)
	if err != nil {
		return fmt.Errorf("delete gif %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) GetGif(ctx context.Context, id int64) (models.Gif, error) {
	return r.getOne(ctx, selectGifByID, id)
}

func (r *postgresRepository) FindGifByURL(ctx context.Context, url string) (models.Gif, error) {
	return r.getOne(ctx, selectGifByURL, url)
}

func (r *postgresRepository) getOne(ctx context.Context, query string, args ...any) (models.Gif, error) {
	gif, err := scanGif(r.pool.QueryRow(ctx, rebind(query), args...))
	if err != nil {
		return models.Gif{}, pgNotFound("load gif", err)
	}
	gifs := []models.Gif{gif}
	if err := r.loadLabels(ctx, gifs); err != nil {
		return models.Gif{}, err
	}
	return gifs[0], nil
}

func (r *postgresRepository) SearchByTitle(ctx context.Context, params SearchParams) ([]models.Gif, error) {
	query, args := searchQuery(params)
	return r.list(ctx, query, args...)
}

func (r *postgresRepository) RandomGif(ctx context.Context, filter RandomFilter, mode models.NSFWMode) (models.Gif, error) {
	query, args, err := randomQuery(filter, mode)
	if err != nil {
		return models.Gif{}, err
	}
	return r.getOne(ctx, query, args...)
}

func (r *postgresRepository) ListGifs(ctx context.Context, afterID int64, limit int) ([]models.Gif, error) {
	return r.list(ctx, selectGifsAfter, afterID, limit)
}

func (r *postgresRepository) CountGifs(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countGifs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count gifs: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) ListTags(ctx context.Context, mode models.NSFWMode) ([]string, error) {
	query, args := listTagsQuery(mode)
	return r.names(ctx, query, args...)
}

func (r *postgresRepository) ListAnime(ctx context.Context) ([]string, error) {
	return r.names(ctx, listAnime)
}

func (r *postgresRepository) ListCharacters(ctx context.Context) ([]string, error) {
	return r.names(ctx, characterLabels.distinctNames())
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Gif, error) {
	rows, err := r.pool.Query(ctx, rebind(query), args...)
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

func (r *postgresRepository) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect labels: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (r *postgresRepository) loadLabels(ctx context.Context, gifs []models.Gif) error {
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

func (r *postgresRepository) labelsFor(ctx context.Context, kind labelKind, ids []int64) (map[int64][]string, error) {
	rows, err := r.pool.Query(ctx, kind.namesFor()+" = ANY($1) ORDER BY l.name", ids)
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

func postgresReplaceLabels(ctx context.Context, tx pgx.Tx, kind labelKind, gifID int64, names []string) error {
	if _, err := tx.Exec(ctx, rebind(kind.unlinkAll()), gifID); err != nil {
		return fmt.Errorf("clear %s: %w", kind.table, err)
	}
	for _, name := range names {
		if _, err := tx.Exec(ctx, rebind(kind.insertName()), name); err != nil {
			return fmt.Errorf("insert %s %q: %w", kind.table, name, err)
		}
		var labelID int64
		if err := tx.QueryRow(ctx, rebind(kind.selectID()), name).Scan(&labelID); err != nil {
			return fmt.Errorf("resolve %s %q: %w", kind.table, name, err)
		}
		if _, err := tx.Exec(ctx, rebind(kind.link()), gifID, labelID); err != nil {
			return fmt.Errorf("link %s %q: %w", kind.table, name, err)
		}
	}
	return nil
}

func postgresWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicateURL)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pgNotFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
