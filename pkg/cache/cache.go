// Package cache stores rendered images keyed by everything that affects
// their bytes.
//
// Caching is optional: the render service uses a [NullCache] unless an
// operator selects a backend. Backends:
//   - [NullCache]: never stores anything (default)
//   - [FileCache]: one file per entry under a local directory
//   - [RedisCache]: shared cache for several service replicas
//   - [MongoCache]: document store with a TTL index
//
// Keys are produced by a [Keyer] so that backends never see raw DOT text.
package cache

import (
	"context"
	"time"
)

// Cache is the storage contract shared by all backends.
//
// Get reports a miss as (nil, false, nil). Expired entries are misses.
// A ttl of zero passed to Set means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
