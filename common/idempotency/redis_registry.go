package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry mirrors dispatch keys into Redis via SETNX so idempotency
// holds across process restarts and across a multi-process deployment, not
// just within one process's in-memory Registry.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry creates a Redis-backed registry. ttl is optional (zero
// means the key never expires); callers that need expiry encode it into the
// key itself, per §4.2's "no TTL" contract for the in-process registry — the
// Redis mirror offers ttl only as an operational safety net, not as part of
// the dispatch semantics.
func NewRedisRegistry(client *redis.Client, prefix string, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix, ttl: ttl}
}

// Register returns true iff key was not previously present in Redis.
func (r *RedisRegistry) Register(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Contains reports whether key is already registered.
func (r *RedisRegistry) Contains(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes a single key. Intended for tests; Redis has no bulk
// "clear registry" primitive that's safe to call against a shared instance.
func (r *RedisRegistry) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
