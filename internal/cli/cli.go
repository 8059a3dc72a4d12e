// Package cli implements the dotcharts command-line interface.
//
// The main commands are:
//   - serve: run the HTTP render service
//   - render: render DOT files locally or through a running server
//   - engines: list the Graphviz layout engines
//   - health: check a running server
//   - cache: manage the local render cache
//
// All commands support --verbose (-v) for debug-level logging and
// --log-format to switch between text, logfmt and JSON output.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dotcharts/pkg/buildinfo"
	"github.com/matzehuels/dotcharts/pkg/cache"
	"github.com/matzehuels/dotcharts/pkg/config"
	"github.com/matzehuels/dotcharts/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "dotcharts"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// SetLogFormat switches the logger output format.
func (c *CLI) SetLogFormat(name string) error {
	f, err := parseLogFormat(name)
	if err != nil {
		return err
	}
	c.Logger.SetFormatter(f)
	return nil
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		verbose   bool
		logFormat string
	)

	root := &cobra.Command{
		Use:          appName,
		Short:        "dotcharts renders Graphviz DOT graphs to SVG and PNG",
		Long:         `dotcharts is an HTTP service and CLI that lays out Graphviz DOT sources with an embedded Graphviz and returns SVG markup or PNG images.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				c.SetLogLevel(LogDebug)
			}
			if err := c.SetLogFormat(logFormat); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text, logfmt or json")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.enginesCommand())
	root.AddCommand(c.healthCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Service Factory
// =============================================================================

// newService builds a render service from cfg. The returned function
// releases the Graphviz instances and the cache connection.
func (c *CLI) newService(ctx context.Context, cfg config.Config) (*render.Service, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	raster, err := render.NewRasterizer(cfg.Rasterizer)
	if err != nil {
		return nil, nil, err
	}

	store, err := cache.Open(ctx, cfg.Cache.Options())
	if err != nil {
		return nil, nil, err
	}

	gv, err := render.NewGraphviz(ctx, cfg.Workers)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	keyer := cache.NewDefaultKeyer()
	if cfg.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.Cache.Prefix)
	}

	svc := render.NewService(gv, raster,
		render.WithCache(store, cfg.Cache.TTL),
		render.WithKeyer(keyer),
		render.WithTimeout(cfg.RenderTimeout),
		render.WithLogger(c.Logger),
	)
	c.Logger.Debug("render service ready",
		"workers", gv.Size(),
		"rasterizer", cfg.Rasterizer,
		"cache", cfg.Cache.Backend)

	cleanup := func() {
		if err := gv.Close(); err != nil {
			c.Logger.Warn("close graphviz", "err", err)
		}
		if err := store.Close(); err != nil {
			c.Logger.Warn("close cache", "err", err)
		}
	}
	return svc, cleanup, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/dotcharts/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
