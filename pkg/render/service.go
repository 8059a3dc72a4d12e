package render

import (
	"context"
	"image/color"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dotcharts/pkg/cache"
	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
	"github.com/matzehuels/dotcharts/pkg/observability"
)

// cacheKeyType labels render entries in cache hooks.
const cacheKeyType = "render"

// Result is a rendered image ready to be written to a client.
type Result struct {
	Body        []byte
	ContentType string
	// Disposition is the Content-Disposition header value, empty for PNG.
	Disposition string
	// Cached is true when Body came from the render cache.
	Cached bool
}

// Service renders requests with an injected layout engine and rasterizer.
//
// The Service holds no per-request state: any number of goroutines may call
// Render concurrently. Contention is bounded by the layout engine.
type Service struct {
	layout  LayoutEngine
	raster  Rasterizer
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	timeout time.Duration
	logger  *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores results in c for ttl. A zero ttl never expires entries.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
		s.ttl = ttl
	}
}

// WithKeyer overrides how cache keys are derived.
func WithKeyer(k cache.Keyer) Option {
	return func(s *Service) {
		if k != nil {
			s.keyer = k
		}
	}
}

// WithTimeout bounds each render. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLogger sets the logger used for cache warnings and debug output.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. Without options it never caches, never
// times out and logs to log.Default().
func NewService(layout LayoutEngine, raster Rasterizer, opts ...Option) *Service {
	s := &Service{
		layout: layout,
		raster: raster,
		cache:  cache.NewNullCache(),
		keyer:  cache.NewDefaultKeyer(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render produces the image for req. Errors are *errors.Error values; an
// INVALID_INPUT code means nothing was attempted.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	format := FormatSVG
	if req.IsPNG() {
		format = FormatPNG
	}

	hooks := observability.Render()
	hooks.OnRenderStart(ctx, req.Engine, format)
	start := time.Now()

	res, err := s.render(ctx, req)
	if err != nil && ctx.Err() != nil && !dcerrors.Is(err, dcerrors.ErrCodeTimeout) {
		err = dcerrors.Wrap(dcerrors.ErrCodeTimeout, err, "render aborted")
	}

	size := 0
	if res != nil {
		size = len(res.Body)
	}
	hooks.OnRenderComplete(ctx, req.Engine, format, size, time.Since(start), err)

	if err != nil {
		return nil, err
	}
	s.logger.Debug("rendered graph",
		"engine", req.Engine,
		"format", format,
		"bytes", size,
		"cached", res.Cached,
		"duration", time.Since(start).Round(time.Microsecond))
	return res, nil
}

func (s *Service) render(ctx context.Context, req Request) (*Result, error) {
	key := s.cacheKey(req)
	if data, hit := s.lookup(ctx, key); hit {
		res := newResult(req, data)
		res.Cached = true
		return res, nil
	}

	svg, err := s.layout.Layout(ctx, req.Graph, req.Engine)
	if err != nil {
		return nil, err
	}

	body := svg
	if req.IsPNG() {
		if body, err = s.toPNG(ctx, req, svg); err != nil {
			return nil, err
		}
	}

	s.store(ctx, key, body)
	return newResult(req, body), nil
}

func (s *Service) toPNG(ctx context.Context, req Request, svg []byte) ([]byte, error) {
	var (
		width, height int
		err           error
	)
	if req.Resize() {
		if width, height, err = req.Size(); err != nil {
			return nil, err
		}
	}

	img, err := s.raster.Rasterize(ctx, svg)
	if err != nil {
		return nil, err
	}
	if req.Resize() {
		img = Contain(img, width, height, color.White)
	}
	return EncodePNG(img)
}

func (s *Service) cacheKey(req Request) string {
	opts := cache.RenderKeyOpts{Format: FormatSVG, Engine: req.Engine}
	if req.IsPNG() {
		opts.Format = FormatPNG
		if req.Resize() {
			opts.Width, opts.Height = req.Width, req.Height
		}
	}
	return s.keyer.RenderKey(req.Graph, opts)
}

func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	if _, ok := s.cache.(cache.NullCache); ok {
		return nil, false
	}
	data, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("render cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, cacheKeyType)
	return data, true
}

func (s *Service) store(ctx context.Context, key string, data []byte) {
	if _, ok := s.cache.(cache.NullCache); ok {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("render cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
}

func newResult(req Request, body []byte) *Result {
	if req.IsPNG() {
		return &Result{Body: body, ContentType: ContentTypePNG}
	}
	return &Result{Body: body, ContentType: ContentTypeSVG, Disposition: "inline"}
}
