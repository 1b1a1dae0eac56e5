package server

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStoreConfig configures the fixed-window counter shared between
// instances for login throttling.
type redisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

type redisStore struct {
	client *redis.Client
}

func newRedisStore(cfg redisStoreConfig) *redisStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &redisStore{client: client}
}

// Allow increments key inside a window of the given length and reports
// whether the count is still within limit. When it is not, the remaining
// window is returned as the retry delay.
func (s *redisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if window < time.Second {
		window = time.Second
	}
	// EXPIRE NX also repairs a counter left without a deadline.
	var incr *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	}); err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	count := incr.Val()
	if count <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl < 0 {
		return false, window, nil
	}
	return false, ttl, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
