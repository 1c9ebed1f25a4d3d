package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

// RedisStore shares dedup claims across instances via SET NX.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed dedup store.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "approvals:dedup:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Acquire claims the key with SETNX so exactly one instance wins.
func (s *RedisStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(s.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup acquire %s: %w", key, err)
	}
	return ok, nil
}

var _ Store = (*RedisStore)(nil)
