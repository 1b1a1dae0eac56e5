package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSessionStore persists sessions to the sessions table, allowing
// multiple API replicas to share authentication state.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
	cfg  storeConfig
}

// NewPostgresSessionStore wraps a pool whose database has been migrated. The
// pool is owned by the caller.
func NewPostgresSessionStore(pool *pgxpool.Pool, opts ...StoreOption) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool, cfg: newStoreConfig(opts)}
}

func (s *PostgresSessionStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	_, err = s.pool.Exec(ctx, `
INSERT INTO sessions (token_hash, expires_at)
VALUES ($1, $2)
ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
`, hashed, expiresAt.UTC())
	return err
}

func (s *PostgresSessionStore) Get(ctx context.Context, token string) (SessionRecord, bool, error) {
	if s.pool == nil {
		return SessionRecord{}, false, fmt.Errorf("postgres session pool not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	record := SessionRecord{Token: token}
	if err := s.pool.QueryRow(ctx, `SELECT expires_at FROM sessions WHERE token_hash = $1`, hashed).Scan(&record.ExpiresAt); err != nil {
		if isNoRows(err) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, err
	}
	record.ExpiresAt = record.ExpiresAt.UTC()
	return record, true, nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, token string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	_, err = s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hashed)
	return err
}

// PurgeExpired deletes sessions whose expiry is at or before now.
func (s *PostgresSessionStore) PurgeExpired(ctx context.Context, now time.Time) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	return err
}

func (s *PostgresSessionStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}
