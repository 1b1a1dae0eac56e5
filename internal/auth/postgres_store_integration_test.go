//go:build postgres

package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gif-api/internal/database"
)

func openPostgresSessionStoreForTest(t *testing.T, opts ...StoreOption) *PostgresSessionStore {
	t.Helper()

	dsn := os.Getenv("GIFAPI_TEST_POSTGRES_DSN")
	if strings.TrimSpace(dsn) == "" {
		t.Skip("GIFAPI_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := database.OpenPostgres(ctx, database.NewPostgresConfig(dsn))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE TABLE sessions`); err != nil {
		pool.Close()
		t.Fatalf("truncate sessions: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = pool.Exec(cleanupCtx, `TRUNCATE TABLE sessions`)
		pool.Close()
	})
	return NewPostgresSessionStore(pool, opts...)
}

func TestPostgresSessionStoreTimeout(t *testing.T) {
	store := openPostgresSessionStoreForTest(t, WithTimeout(50*time.Millisecond))

	ctx := context.Background()
	if _, err := store.pool.Exec(ctx, `CREATE OR REPLACE FUNCTION slow_sessions_trigger() RETURNS trigger AS $$ BEGIN PERFORM pg_sleep(0.2); RETURN NEW; END; $$ LANGUAGE plpgsql;`); err != nil {
		t.Fatalf("failed to create slow trigger function: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `DROP TRIGGER IF EXISTS slow_sessions_trigger ON sessions`); err != nil {
		t.Fatalf("failed to drop existing trigger: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `CREATE TRIGGER slow_sessions_trigger BEFORE INSERT ON sessions FOR EACH ROW EXECUTE FUNCTION slow_sessions_trigger()`); err != nil {
		t.Fatalf("failed to create slow trigger: %v", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = store.pool.Exec(cleanupCtx, `DROP TRIGGER IF EXISTS slow_sessions_trigger ON sessions`)
		_, _ = store.pool.Exec(cleanupCtx, `DROP FUNCTION IF EXISTS slow_sessions_trigger()`)
	}()

	err := store.Save(ctx, "timeout-token", time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected timeout error from slow trigger")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded; got %v", err)
	}
}

func TestPostgresSessionStoreSavesHashedTokens(t *testing.T) {
	store := openPostgresSessionStoreForTest(t)
	ctx := context.Background()

	token := "raw-session-token"
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Microsecond)
	if err := store.Save(ctx, token, expiresAt); err != nil {
		t.Fatalf("save session: %v", err)
	}

	hashedToken, err := hashSessionToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	var count int
	if err := store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE token_hash = $1`, hashedToken).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected hashed row, got %d", count)
	}

	record, ok, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !ok {
		t.Fatalf("expected session to be found")
	}
	if record.Token != token {
		t.Fatalf("expected record token to match input")
	}
	if !record.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected expiresAt %v, got %v", expiresAt, record.ExpiresAt)
	}
}

func TestPostgresSessionStoreDeleteUsesHashes(t *testing.T) {
	store := openPostgresSessionStoreForTest(t)
	ctx := context.Background()

	token := "token-to-delete"
	if err := store.Save(ctx, token, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := store.Get(ctx, token); err != nil || ok {
		t.Fatalf("expected deleted session to be absent, ok=%v err=%v", ok, err)
	}
}

func TestPostgresSessionStorePurgeExpired(t *testing.T) {
	store := openPostgresSessionStoreForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Save(ctx, "expired", now.Add(-time.Minute)); err != nil {
		t.Fatalf("save expired: %v", err)
	}
	if err := store.Save(ctx, "live", now.Add(time.Hour)); err != nil {
		t.Fatalf("save live: %v", err)
	}
	if err := store.PurgeExpired(ctx, now); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "expired"); ok {
		t.Fatal("expected expired session to be purged")
	}
	if _, ok, _ := store.Get(ctx, "live"); !ok {
		t.Fatal("expected live session to remain")
	}
}
