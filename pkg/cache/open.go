package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/dotcharts/pkg/httputil"
)

// Backend names accepted by [Open].
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend         string
	Dir             string
	RedisURL        string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// connectAttempts bounds how long startup waits for a remote backend.
const connectAttempts = 3

// Open builds the backend named by opts.Backend. Remote backends are
// retried a few times so the service can start alongside its cache.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		c, err := NewFileCache(opts.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendRedis:
		var c *RedisCache
		err := httputil.Retry(ctx, connectAttempts, time.Second, func() error {
			var err error
			c, err = NewRedisCache(ctx, opts.RedisURL)
			return retryable(err)
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMongo:
		var c *MongoCache
		err := httputil.Retry(ctx, connectAttempts, time.Second, func() error {
			var err error
			c, err = NewMongoCache(ctx, opts.MongoURI, opts.MongoDatabase, opts.MongoCollection)
			return retryable(err)
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &httputil.RetryableError{Err: err}
}
