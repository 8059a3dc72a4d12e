package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/dotcharts/pkg/cache"
	"github.com/matzehuels/dotcharts/pkg/client"
	"github.com/matzehuels/dotcharts/pkg/config"
	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
	"github.com/matzehuels/dotcharts/pkg/render"
)

// stdio names standard input or output in file arguments.
const stdio = "-"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string // output file, directory or "-" for stdout
	format     string // svg or png
	engine     string // Graphviz layout engine
	width      string // PNG box width, same coercion as the HTTP parameter
	height     string // PNG box height
	jobs       int    // concurrent renders
	noCache    bool   // skip the local render cache
	rasterizer string // auto, vector or rsvg
	serverURL  string // render through a running server instead of locally
}

// renderFunc renders one request and reports whether it came from a cache.
type renderFunc func(ctx context.Context, req render.Request) ([]byte, bool, error)

// renderCommand creates the render command for converting DOT files.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		format: render.FormatSVG,
		engine: render.DefaultEngine,
		jobs:   1,
	}

	cmd := &cobra.Command{
		Use:   "render [file...]",
		Short: "Render DOT files to SVG or PNG",
		Long: `Render DOT files to SVG or PNG.

Each input graph.dot is written next to itself as graph.svg or graph.png
unless --output names a file or directory. Use "-" to read from stdin;
its result goes to stdout unless --output is set.

With --server the files are rendered by a running dotcharts service.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(args); err != nil {
				return err
			}
			fn, cleanup, err := c.renderer(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()
			return runRender(cmd.Context(), fn, args, opts, cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file or directory (- for stdout)")
	f.StringVarP(&opts.format, "format", "f", opts.format, "output format: svg or png")
	f.StringVarP(&opts.engine, "engine", "e", opts.engine, "layout engine (see 'dotcharts engines')")
	f.StringVar(&opts.width, "width", "", "PNG box width; needs --height")
	f.StringVar(&opts.height, "height", "", "PNG box height; needs --width")
	f.IntVarP(&opts.jobs, "jobs", "j", opts.jobs, "number of graphs rendered concurrently")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the local render cache")
	f.StringVar(&opts.rasterizer, "rasterizer", "auto", "SVG to PNG rasterizer: auto, vector or rsvg")
	f.StringVar(&opts.serverURL, "server", "", "render through the dotcharts server at this URL")

	return cmd
}

func (o *renderOpts) validate(args []string) error {
	if err := dcerrors.ValidateFormat(o.format); err != nil {
		return err
	}
	if err := dcerrors.ValidateEngine(o.engine, render.Engines()); err != nil {
		return err
	}
	o.jobs = max(o.jobs, 1)

	stdin := 0
	for _, a := range args {
		if a == stdio {
			stdin++
		}
	}
	if stdin > 1 {
		return dcerrors.New(dcerrors.ErrCodeInvalidInput, "stdin can only be read once")
	}
	if len(args) > 1 && o.output != "" && !isDir(o.output) {
		return dcerrors.New(dcerrors.ErrCodeInvalidInput, "--output must be a directory when rendering %d files", len(args))
	}
	return nil
}

// renderer returns a local or remote render function.
func (c *CLI) renderer(ctx context.Context, o renderOpts) (renderFunc, func(), error) {
	if o.serverURL != "" {
		cl, err := client.New(o.serverURL)
		if err != nil {
			return nil, nil, err
		}
		fn := func(ctx context.Context, req render.Request) ([]byte, bool, error) {
			body, _, err := cl.Render(ctx, req)
			return body, false, err
		}
		return fn, func() {}, nil
	}

	cfg := config.Default()
	cfg.Workers = o.jobs
	cfg.Rasterizer = o.rasterizer
	if !o.noCache {
		dir, err := cacheDir()
		if err != nil {
			return nil, nil, err
		}
		cfg.Cache.Backend = cache.BackendFile
		cfg.Cache.Dir = dir
	}

	svc, cleanup, err := c.newService(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	fn := func(ctx context.Context, req render.Request) ([]byte, bool, error) {
		res, err := svc.Render(ctx, req)
		if err != nil {
			return nil, false, err
		}
		return res.Body, res.Cached, nil
	}
	return fn, cleanup, nil
}

func runRender(ctx context.Context, fn renderFunc, inputs []string, o renderOpts, stdout io.Writer, stdin io.Reader) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.jobs)

	for _, input := range inputs {
		g.Go(func() error {
			src, err := readInput(input, stdin)
			if err != nil {
				return err
			}
			req := render.Request{
				Graph:  string(src),
				Format: o.format,
				Engine: o.engine,
				Width:  o.width,
				Height: o.height,
			}
			body, cached, err := fn(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", displayName(input), err)
			}

			out := outputPath(input, o.output, o.format)
			if out == stdio {
				mu.Lock()
				defer mu.Unlock()
				_, err := stdout.Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return err
			}
			logger.Debug("rendered", "input", displayName(input), "output", out, "bytes", len(body), "cached", cached)

			mu.Lock()
			defer mu.Unlock()
			printFile(out)
			printStats(len(body), cached)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d %s", len(inputs), plural(len(inputs), "graph", "graphs")))
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdio {
		return io.ReadAll(stdin)
	}
	if err := dcerrors.ValidatePath(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// outputPath decides where the result for input is written.
func outputPath(input, output, format string) string {
	switch {
	case output == "" && input == stdio:
		return stdio
	case output == "":
		return strings.TrimSuffix(input, filepath.Ext(input)) + "." + format
	case isDir(output):
		name := "graph"
		if input != stdio {
			base := filepath.Base(input)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return filepath.Join(output, name+"."+format)
	default:
		return output
	}
}

func displayName(input string) string {
	if input == stdio {
		return "<stdin>"
	}
	return input
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
