package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSessionTTL is the validity window of tokens issued by admin login.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore defines the persistence contract for session tokens.
type SessionStore interface {
	Save(ctx context.Context, token string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (SessionRecord, bool, error)
	Delete(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context, now time.Time) error
}

// SessionRecord captures a session row retrieved from the backing store.
type SessionRecord struct {
	Token     string
	ExpiresAt time.Time
}

// SessionOption configures a SessionManager instance.
type SessionOption func(*SessionManager)

// WithStore injects a custom SessionStore implementation.
func WithStore(store SessionStore) SessionOption {
	return func(m *SessionManager) {
		m.store = store
	}
}

// WithTokenLength sets the number of random bytes in newly created tokens.
func WithTokenLength(length int) SessionOption {
	return func(m *SessionManager) {
		if length > 0 {
			m.tokenLength = length
		}
	}
}

// WithClock overrides the time source used for issuing and checking expiry.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used for failures that do not reach the caller.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// SessionManager coordinates session creation and validation against a backing store.
type SessionManager struct {
	store        SessionStore
	ttl          time.Duration
	tokenLength  int
	tokenFactory func(int) (string, error)
	now          func() time.Time
	ping         func(context.Context) error
	logger       *slog.Logger
}

// NewSessionManager constructs a SessionManager with the provided TTL and options.
// It defaults to DefaultSessionTTL and an in-memory store when none is supplied.
func NewSessionManager(ttl time.Duration, opts ...SessionOption) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	manager := &SessionManager{
		ttl:          ttl,
		tokenLength:  32,
		tokenFactory: generateToken,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.store == nil {
		manager.store = NewMemorySessionStore()
	}
	if pinger, ok := manager.store.(interface{ Ping(context.Context) error }); ok {
		manager.ping = pinger.Ping
	}
	return manager
}

// TTL reports the validity window applied by Create.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create issues a new token valid for the manager's TTL.
func (m *SessionManager) Create(ctx context.Context) (string, time.Time, error) {
	return m.CreateWithValidity(ctx, m.ttl)
}

// CreateWithValidity issues a new token that expires after validity.
func (m *SessionManager) CreateWithValidity(ctx context.Context, validity time.Duration) (string, time.Time, error) {
	if validity <= 0 {
		return "", time.Time{}, ErrInvalidValidity
	}
	token, err := m.tokenFactory(m.tokenLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	expiresAt := m.now().Add(validity).UTC()
	if err := m.store.Save(ctx, token, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("save session: %w", err)
	}
	return token, expiresAt, nil
}

// Validate reports whether token exists and has not yet expired. Expired
// sessions encountered here are removed.
func (m *SessionManager) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	record, ok, err := m.store.Get(ctx, token)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return false, nil
	}
	if !m.now().Before(record.ExpiresAt) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired session", "error", err)
		}
		return false, nil
	}
	return true, nil
}

// Expiry returns the stored expiry for token whether or not it has passed.
func (m *SessionManager) Expiry(ctx context.Context, token string) (time.Time, bool, error) {
	if token == "" {
		return time.Time{}, false, nil
	}
	record, ok, err := m.store.Get(ctx, token)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return record.ExpiresAt, true, nil
}

// Revoke deletes the session token from the backing store. Unknown tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// PurgeExpired removes any expired sessions from the backing store.
func (m *SessionManager) PurgeExpired(ctx context.Context) error {
	return m.store.PurgeExpired(ctx, m.now())
}

// Ping verifies the underlying session store is reachable when it exposes a ping method.
func (m *SessionManager) Ping(ctx context.Context) error {
	if m == nil || m.ping == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.ping(ctx)
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// ErrInvalidValidity is returned when a token is requested with a non-positive lifetime.
var ErrInvalidValidity = errors.New("session validity must be positive")
