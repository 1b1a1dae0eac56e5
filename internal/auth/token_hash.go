package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var errSessionTokenRequired = errors.New("session token required")

// Persisted stores key rows by the token digest so a leaked table cannot be replayed.
func hashSessionToken(token string) (string, error) {
	if token == "" {
		return "", errSessionTokenRequired
	}
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:]), nil
}

// StoreOption configures the persisted session stores.
type StoreOption func(*storeConfig)

type storeConfig struct {
	timeout time.Duration
}

// WithTimeout bounds every statement issued by a persisted session store.
func WithTimeout(timeout time.Duration) StoreOption {
	return func(cfg *storeConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

func newStoreConfig(opts []StoreOption) storeConfig {
	cfg := storeConfig{timeout: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c storeConfig) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
