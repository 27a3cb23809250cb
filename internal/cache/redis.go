package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis backs the cache with a shared Redis instance so multiple deployment
// replicas see the same entries. Failures degrade to cache misses; the cache
// is an optimization, never a source of truth.
type Redis struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

func NewRedis(client *redis.Client, log *zap.SugaredLogger) *Redis {
	return &Redis{client: client, log: log}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		r.log.Warnw("cache get failed", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warnw("cache set failed", "key", key, "error", err)
	}
}
