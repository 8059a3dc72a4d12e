package render

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-graphviz"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
)

// LayoutEngine lays out DOT source with the named algorithm and returns
// SVG markup.
type LayoutEngine interface {
	Layout(ctx context.Context, dot, engine string) ([]byte, error)
}

var engines = []string{
	string(graphviz.CIRCO),
	string(graphviz.DOT),
	string(graphviz.FDP),
	string(graphviz.NEATO),
	string(graphviz.NOP),
	string(graphviz.NOP1),
	string(graphviz.NOP2),
	string(graphviz.OSAGE),
	string(graphviz.PATCHWORK),
	string(graphviz.SFDP),
	string(graphviz.TWOPI),
}

// Engines returns the layout algorithm names [Graphviz] accepts.
func Engines() []string {
	return append([]string(nil), engines...)
}

// parseMu serializes graphviz.ParseBytes, which is not safe for concurrent use.
var parseMu sync.Mutex

// Graphviz is a [LayoutEngine] backed by a fixed pool of WebAssembly
// Graphviz instances. An instance renders one graph at a time, so the pool
// size is the number of layouts that can run concurrently; further
// requests wait for a free instance.
type Graphviz struct {
	pool chan *graphviz.Graphviz
	size int

	closeOnce sync.Once
}

// NewGraphviz starts size Graphviz instances (at least one).
func NewGraphviz(ctx context.Context, size int) (*Graphviz, error) {
	size = max(size, 1)
	g := &Graphviz{pool: make(chan *graphviz.Graphviz, size)}
	for range size {
		gv, err := graphviz.New(ctx)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("init graphviz: %w", err)
		}
		g.pool <- gv
		g.size++
	}
	return g, nil
}

// Size returns the number of pooled instances.
func (g *Graphviz) Size() int { return g.size }

// Layout implements LayoutEngine.
func (g *Graphviz) Layout(ctx context.Context, dot, engine string) ([]byte, error) {
	if err := dcerrors.ValidateEngine(engine, engines); err != nil {
		return nil, err
	}

	var gv *graphviz.Graphviz
	select {
	case gv = <-g.pool:
	case <-ctx.Done():
		return nil, dcerrors.Wrap(dcerrors.ErrCodeTimeout, ctx.Err(), "waiting for layout engine")
	}
	defer func() { g.pool <- gv }()

	parseMu.Lock()
	graph, err := graphviz.ParseBytes([]byte(dot))
	parseMu.Unlock()
	if err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeLayout, err, "parse DOT")
	}
	if graph == nil {
		return nil, dcerrors.New(dcerrors.ErrCodeLayout, "parse DOT: no graph found in input")
	}
	defer graph.Close()

	var buf bytes.Buffer
	gv.SetLayout(graphviz.Layout(engine))
	if err := gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeLayout, err, "layout with %s", engine)
	}
	if buf.Len() == 0 {
		return nil, dcerrors.New(dcerrors.ErrCodeLayout, "layout with %s produced no output", engine)
	}
	return buf.Bytes(), nil
}

// Close waits for every instance to be returned to the pool and releases
// it. Layout must not be called after Close.
func (g *Graphviz) Close() error {
	var errs []error
	g.closeOnce.Do(func() {
		for range g.size {
			gv := <-g.pool
			if err := gv.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("close graphviz: %v", errs)
	}
	return nil
}

var _ LayoutEngine = (*Graphviz)(nil)
