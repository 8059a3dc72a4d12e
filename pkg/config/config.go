// Package config holds the dotcharts server settings.
//
// Settings come from three layers: [Default], an optional TOML file read
// by [Load], and command-line flags applied by the CLI on top. A server
// started without any configuration listens on :3000, renders one graph
// at a time and keeps nothing between requests.
//
// Example file:
//
//	addr = ":8080"
//	workers = 4
//	render_timeout = "30s"
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//	ttl = "1h"
//
//	[metrics]
//	enabled = true
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/dotcharts/pkg/cache"
	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
	"github.com/matzehuels/dotcharts/pkg/render"
)

const (
	DefaultAddr            = ":3000"
	DefaultWorkers         = 1
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCacheTTL        = 24 * time.Hour
	DefaultMongoDatabase   = "dotcharts"
	DefaultMongoCollection = "renders"
	DefaultMetricsPath     = "/metrics"
)

// Config is the complete server configuration.
type Config struct {
	Addr string `toml:"addr"`
	// Workers is the number of Graphviz instances, i.e. how many layouts
	// run in parallel.
	Workers int `toml:"workers"`
	// RenderTimeout bounds a single render. Zero disables the limit.
	RenderTimeout   time.Duration `toml:"render_timeout"`
	Rasterizer      string        `toml:"rasterizer"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	Cache   Cache   `toml:"cache"`
	Metrics Metrics `toml:"metrics"`
}

// Cache selects the render cache backend.
type Cache struct {
	Backend         string        `toml:"backend"`
	TTL             time.Duration `toml:"ttl"`
	Dir             string        `toml:"dir"`
	RedisURL        string        `toml:"redis_url"`
	MongoURI        string        `toml:"mongo_uri"`
	MongoDatabase   string        `toml:"mongo_database"`
	MongoCollection string        `toml:"mongo_collection"`
	// Prefix scopes keys when several deployments share a backend.
	Prefix string `toml:"prefix"`
}

// Metrics controls the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            DefaultAddr,
		Workers:         DefaultWorkers,
		Rasterizer:      render.RasterizerAuto,
		ShutdownTimeout: DefaultShutdownTimeout,
		Cache: Cache{
			Backend:         cache.BackendNone,
			TTL:             DefaultCacheTTL,
			MongoDatabase:   DefaultMongoDatabase,
			MongoCollection: DefaultMongoCollection,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Load reads the TOML file at path over [Default]. An empty path returns
// the defaults. Unknown keys are rejected so typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := dcerrors.ValidatePath(path); err != nil {
		return cfg, err
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, dcerrors.Wrap(dcerrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, dcerrors.New(dcerrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	err = cfg.Validate()
	return cfg, err
}

// Validate fills zero values with defaults and rejects inconsistent
// settings.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.RenderTimeout < 0 {
		return invalid("render_timeout must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	switch c.Rasterizer {
	case "":
		c.Rasterizer = render.RasterizerAuto
	case render.RasterizerAuto, render.RasterizerVector, render.RasterizerRsvg:
	default:
		return invalid("unknown rasterizer %q (want auto, vector or rsvg)", c.Rasterizer)
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	switch {
	case !strings.HasPrefix(c.Metrics.Path, "/"):
		return invalid("metrics path %q must start with /", c.Metrics.Path)
	case c.Metrics.Path == "/" || c.Metrics.Path == "/health":
		return invalid("metrics path %q collides with a render route", c.Metrics.Path)
	}
	return nil
}

func (c *Cache) validate() error {
	if c.TTL < 0 {
		return invalid("cache ttl must not be negative")
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = DefaultMongoDatabase
	}
	if c.MongoCollection == "" {
		c.MongoCollection = DefaultMongoCollection
	}

	switch c.Backend {
	case "":
		c.Backend = cache.BackendNone
	case cache.BackendNone:
	case cache.BackendFile:
		if c.Dir == "" {
			return invalid("cache backend file needs a dir")
		}
	case cache.BackendRedis:
		if c.RedisURL == "" {
			return invalid("cache backend redis needs redis_url")
		}
	case cache.BackendMongo:
		if c.MongoURI == "" {
			return invalid("cache backend mongo needs mongo_uri")
		}
	default:
		return invalid("unknown cache backend %q (want none, file, redis or mongo)", c.Backend)
	}
	return nil
}

// Options converts the section into [cache.Options] for [cache.Open].
func (c Cache) Options() cache.Options {
	return cache.Options{
		Backend:         c.Backend,
		Dir:             c.Dir,
		RedisURL:        c.RedisURL,
		MongoURI:        c.MongoURI,
		MongoDatabase:   c.MongoDatabase,
		MongoCollection: c.MongoCollection,
	}
}

// Enabled reports whether a real backend is configured.
func (c Cache) Enabled() bool {
	return c.Backend != "" && c.Backend != cache.BackendNone
}

func invalid(format string, args ...any) error {
	return dcerrors.New(dcerrors.ErrCodeInvalidConfig, format, args...)
}

// String renders the effective settings for the startup log.
func (c Config) String() string {
	return fmt.Sprintf("addr=%s workers=%d rasterizer=%s cache=%s metrics=%t",
		c.Addr, c.Workers, c.Rasterizer, c.Cache.Backend, c.Metrics.Enabled)
}
