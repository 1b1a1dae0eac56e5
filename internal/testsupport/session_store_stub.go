package testsupport

import (
	"context"
	"sync"
	"time"

	"gif-api/internal/auth"
)

// SessionStoreStub is an in-memory auth.SessionStore for tests. It allows
// seeding records with custom expirations and forcing store failures.
type SessionStoreStub struct {
	mu       sync.RWMutex
	sessions map[string]auth.SessionRecord
	err      error
	pingErr  error
}

func NewSessionStoreStub() *SessionStoreStub {
	return &SessionStoreStub{sessions: make(map[string]auth.SessionRecord)}
}

// Fail makes every subsequent store call return err. Pass nil to recover.
func (s *SessionStoreStub) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// FailPing makes Ping return err.
func (s *SessionStoreStub) FailPing(err error) {
	s.mu.Lock()
	s.pingErr = err
	s.mu.Unlock()
}

// Seed stores a token with an explicit expiry, bypassing the manager.
func (s *SessionStoreStub) Seed(token string, expiresAt time.Time) {
	s.mu.Lock()
	s.sessions[token] = auth.SessionRecord{Token: token, ExpiresAt: expiresAt.UTC()}
	s.mu.Unlock()
}

func (s *SessionStoreStub) Save(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sessions[token] = auth.SessionRecord{Token: token, ExpiresAt: expiresAt.UTC()}
	return nil
}

func (s *SessionStoreStub) Get(_ context.Context, token string) (auth.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return auth.SessionRecord{}, false, s.err
	}
	record, ok := s.sessions[token]
	return record, ok, nil
}

func (s *SessionStoreStub) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.sessions, token)
	return nil
}

func (s *SessionStoreStub) PurgeExpired(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for token, record := range s.sessions {
		if !now.Before(record.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *SessionStoreStub) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// Has reports whether token is still stored, expired or not.
func (s *SessionStoreStub) Has(token string) bool {
	s.mu.RLock()
	_, ok := s.sessions[token]
	s.mu.RUnlock()
	return ok
}

// Tokens returns the stored tokens.
func (s *SessionStoreStub) Tokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens := make([]string, 0, len(s.sessions))
	for token := range s.sessions {
		tokens = append(tokens, token)
	}
	return tokens
}
