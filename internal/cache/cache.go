// Package cache provides the short-TTL read-through cache used in front of
// the listing query. Eviction is purely time-based: writes are rare and
// async relative to reads, so nothing invalidates on write.
package cache

import (
	"context"
	"time"
)

// Cache is deliberately tiny so the backing store can be swapped: Redis when
// configured, an in-process TTL map otherwise (and in tests).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
