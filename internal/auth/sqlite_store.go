package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteSessionStore persists sessions in the sessions table of a SQLite
// database. Expiry is stored as unix nanoseconds.
type SQLiteSessionStore struct {
	db  *sql.DB
	cfg storeConfig
}

// NewSQLiteSessionStore wraps a migrated handle. The handle is owned by the caller.
func NewSQLiteSessionStore(db *sql.DB, opts ...StoreOption) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db, cfg: newStoreConfig(opts)}
}

func (s *SQLiteSessionStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if s.db == nil {
		return fmt.Errorf("sqlite session database not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, expires_at) VALUES (?, ?) ON CONFLICT (token_hash) DO UPDATE SET expires_at = excluded.expires_at`,
		hashed, expiresAt.UTC().UnixNano())
	return err
}

func (s *SQLiteSessionStore) Get(ctx context.Context, token string) (SessionRecord, bool, error) {
	if s.db == nil {
		return SessionRecord{}, false, fmt.Errorf("sqlite session database not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	var expiresAt int64
	if err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM sessions WHERE token_hash = ?`, hashed).Scan(&expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, err
	}
	return SessionRecord{Token: token, ExpiresAt: time.Unix(0, expiresAt).UTC()}, true, nil
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, token string) error {
	if s.db == nil {
		return fmt.Errorf("sqlite session database not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, hashed)
	return err
}

// PurgeExpired deletes sessions whose expiry is at or before now.
func (s *SQLiteSessionStore) PurgeExpired(ctx context.Context, now time.Time) error {
	if s.db == nil {
		return fmt.Errorf("sqlite session database not configured")
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC().UnixNano())
	return err
}

func (s *SQLiteSessionStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("sqlite session database not configured")
	}
	ctx, cancel := s.cfg.context(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}
