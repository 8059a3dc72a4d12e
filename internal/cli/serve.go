package cli

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dotcharts/pkg/buildinfo"
	"github.com/matzehuels/dotcharts/pkg/cache"
	"github.com/matzehuels/dotcharts/pkg/config"
	"github.com/matzehuels/dotcharts/pkg/observability"
	"github.com/matzehuels/dotcharts/pkg/server"
)

// serveOpts holds flag values that override the config file.
type serveOpts struct {
	configPath string
	addr       string
	workers    int
	timeout    time.Duration
	rasterizer string
	backend    string
	cacheDir   string
	cacheTTL   time.Duration
	redisURL   string
	mongoURI   string
	prefix     string
	metrics    bool
}

// serveCommand creates the serve command that runs the HTTP render service.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP render service",
		Long: `Run the HTTP render service.

GET /?graph=<dot>&format=svg|png&engine=<name>&width=<px>&height=<px>
renders a graph; GET /health answers 200 once the server is up.

Settings are read from --config (TOML) and overridden by flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}
			return c.runServe(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	f.StringVar(&opts.addr, "addr", config.DefaultAddr, "listen address")
	f.IntVarP(&opts.workers, "workers", "w", config.DefaultWorkers, "number of concurrent Graphviz layouts")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-render timeout (0 disables)")
	f.StringVar(&opts.rasterizer, "rasterizer", "auto", "SVG to PNG rasterizer: auto, vector or rsvg")
	f.StringVar(&opts.backend, "cache", cache.BackendNone, "render cache backend: none, file, redis or mongo")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "directory for the file cache (default: user cache dir)")
	f.DurationVar(&opts.cacheTTL, "cache-ttl", config.DefaultCacheTTL, "render cache entry lifetime (0 keeps entries forever)")
	f.StringVar(&opts.redisURL, "redis-url", "", "Redis URL for the redis cache")
	f.StringVar(&opts.mongoURI, "mongo-uri", "", "MongoDB URI for the mongo cache")
	f.StringVar(&opts.prefix, "cache-prefix", "", "prefix for cache keys")
	f.BoolVar(&opts.metrics, "metrics", true, "expose Prometheus metrics")

	return cmd
}

// apply copies explicitly set flags onto cfg.
func (o serveOpts) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = o.addr
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
	if f.Changed("timeout") {
		cfg.RenderTimeout = o.timeout
	}
	if f.Changed("rasterizer") {
		cfg.Rasterizer = o.rasterizer
	}
	if f.Changed("cache") {
		cfg.Cache.Backend = o.backend
	}
	if f.Changed("cache-dir") {
		cfg.Cache.Dir = o.cacheDir
	}
	if f.Changed("cache-ttl") {
		cfg.Cache.TTL = o.cacheTTL
	}
	if f.Changed("redis-url") {
		cfg.Cache.RedisURL = o.redisURL
	}
	if f.Changed("mongo-uri") {
		cfg.Cache.MongoURI = o.mongoURI
	}
	if f.Changed("cache-prefix") {
		cfg.Cache.Prefix = o.prefix
	}
	if f.Changed("metrics") {
		cfg.Metrics.Enabled = o.metrics
	}

	if cfg.Cache.Backend == cache.BackendFile && cfg.Cache.Dir == "" {
		dir, err := cacheDir()
		if err != nil {
			return err
		}
		cfg.Cache.Dir = dir
	}
	return cfg.Validate()
}

func (c *CLI) runServe(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observability.NewPrometheus(reg).Install()
		defer observability.Reset()
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	svc, cleanup, err := c.newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting dotcharts", "version", buildinfo.Version, "commit", buildinfo.Commit)
	logger.Debug("configuration", "config", cfg.String(), "timeout", cfg.RenderTimeout, "ttl", cfg.Cache.TTL)

	srv := server.New(svc, server.Config{
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Metrics:         metrics,
		MetricsPath:     cfg.Metrics.Path,
		Logger:          logger,
	})
	return srv.ListenAndServe(ctx)
}
