package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
	"github.com/matzehuels/dotcharts/pkg/render"
)

// stubLayout returns a fixed SVG or error and records the engine it saw.
type stubLayout struct {
	mu     sync.Mutex
	svg    string
	err    error
	engine string
}

func (l *stubLayout) Layout(_ context.Context, dot, engine string) ([]byte, error) {
	l.mu.Lock()
	l.engine = engine
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return []byte(l.svg), nil
}

type stubRaster struct{ w, h int }

func (r stubRaster) Rasterize(context.Context, []byte) (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, r.w, r.h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, render.Request) (*render.Result, error) {
	panic("boom")
}

func newTestServer(t *testing.T, layout render.LayoutEngine, cfg Config) (*Server, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	cfg.Logger = log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})
	svc := render.NewService(layout, stubRaster{w: 40, h: 20}, render.WithLogger(cfg.Logger))
	return New(svc, cfg), &logs
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func renderURL(params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return "/?" + q.Encode()
}

func TestHandleRenderMissingGraph(t *testing.T) {
	layout := &stubLayout{svg: "<svg/>"}
	srv, _ := newTestServer(t, layout, Config{})

	for _, target := range []string{"/", "/?graph=", "/?format=png&width=10&height=10"} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, srv, target)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("body = %q, want empty", rec.Body.String())
			}
		})
	}
	if layout.engine != "" {
		t.Error("layout must not run without a graph")
	}
}

func TestHandleRenderSVG(t *testing.T) {
	layout := &stubLayout{svg: `<svg xmlns="http://www.w3.org/2000/svg"></svg>`}
	srv, _ := newTestServer(t, layout, Config{})

	rec := get(t, srv, renderURL(map[string]string{"graph": "digraph{a->b}"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "inline" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != layout.svg {
		t.Errorf("body = %q, want layout output", rec.Body.String())
	}
	if layout.engine != "dot" {
		t.Errorf("engine = %q, want dot", layout.engine)
	}
}

func TestHandleRenderEngine(t *testing.T) {
	layout := &stubLayout{svg: "<svg/>"}
	srv, _ := newTestServer(t, layout, Config{})

	rec := get(t, srv, renderURL(map[string]string{"graph": "graph{a--b}", "engine": "neato"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if layout.engine != "neato" {
		t.Errorf("engine = %q, want neato", layout.engine)
	}
}

func TestHandleRenderPNG(t *testing.T) {
	tests := []struct {
		name         string
		params       map[string]string
		wantW, wantH int
	}{
		{"natural", map[string]string{}, 40, 20},
		{"width only", map[string]string{"width": "300"}, 40, 20},
		{"height only", map[string]string{"height": "300"}, 40, 20},
		{"box", map[string]string{"width": "200", "height": "100"}, 200, 100},
		{"non numeric", map[string]string{"width": "abc", "height": "abc"}, 100, 100},
		{"empty width", map[string]string{"width": "", "height": "50"}, 40, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubLayout{svg: "<svg/>"}, Config{})
			params := map[string]string{"graph": "digraph{a->b}", "format": "png"}
			for k, v := range tt.params {
				params[k] = v
			}

			rec := get(t, srv, renderURL(params))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body=%q", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != "image/png" {
				t.Errorf("Content-Type = %q", got)
			}
			if got := rec.Header().Get("Content-Disposition"); got != "" {
				t.Errorf("Content-Disposition = %q, want none", got)
			}
			img, err := png.Decode(rec.Body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestHandleRenderPNGPadding(t *testing.T) {
	srv, _ := newTestServer(t, &stubLayout{svg: "<svg/>"}, Config{})

	// 40x20 into 100x100 leaves white bands above and below
	rec := get(t, srv, renderURL(map[string]string{
		"graph": "digraph{}", "format": "png", "width": "100", "height": "100",
	}))
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if c := color.NRGBAModel.Convert(img.At(50, 2)).(color.NRGBA); c != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("padding = %v, want white", c)
	}
}

func TestHandleRenderFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		params   map[string]string
		wantBody string
		wantCode string
	}{
		{
			name:     "layout",
			err:      dcerrors.New(dcerrors.ErrCodeLayout, "syntax error in line 1 near '->'"),
			params:   map[string]string{"graph": "digraph{a->"},
			wantBody: "syntax error in line 1 near '->'",
			wantCode: "LAYOUT_FAILED",
		},
		{
			name:     "plain error",
			err:      errors.New("wasm trap"),
			params:   map[string]string{"graph": "digraph{a}"},
			wantBody: "wasm trap",
			wantCode: "INTERNAL_ERROR",
		},
		{
			name:     "bad dimension",
			params:   map[string]string{"graph": "digraph{a}", "format": "png", "width": "-1", "height": "10"},
			wantBody: "expected positive integer for width but received -1",
			wantCode: "INVALID_DIMENSION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, logs := newTestServer(t, &stubLayout{svg: "<svg/>", err: tt.err}, Config{})

			rec := get(t, srv, renderURL(tt.params))
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
			if got := rec.Header().Get(ErrorCodeHeader); got != tt.wantCode {
				t.Errorf("%s = %q, want %q", ErrorCodeHeader, got, tt.wantCode)
			}
			out := logs.String()
			if !strings.Contains(out, "render failed") || !strings.Contains(out, tt.wantCode) {
				t.Errorf("failure not logged: %q", out)
			}
			if !strings.Contains(out, "stack=") || !strings.Contains(out, "goroutine") {
				t.Errorf("failure logged without a stack trace: %q", out)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubLayout{}, Config{})

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := httptest.NewRequest(method, "/health", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s /health = %d, want 200", method, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("%s /health body = %q, want empty", method, rec.Body.String())
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, &stubLayout{}, Config{})
	if rec := get(t, srv, "/render"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST / = %d, want 405", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv, logs := newTestServer(t, &stubLayout{}, Config{})

	rec := get(t, srv, "/health")
	id := rec.Header().Get(RequestIDHeader)
	if len(id) != 36 {
		t.Errorf("generated request id = %q, want a UUID", id)
	}
	if !strings.Contains(logs.String(), id) {
		t.Error("access log should carry the request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want caller's", got)
	}
}

func TestRecoverer(t *testing.T) {
	var logs bytes.Buffer
	srv := New(panicRenderer{}, Config{Logger: log.NewWithOptions(&logs, log.Options{})})

	rec := get(t, srv, "/?graph=x")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	out := logs.String()
	if !strings.Contains(out, "panic serving request") || !strings.Contains(out, "boom") || !strings.Contains(out, "goroutine") {
		t.Errorf("panic and stack should be logged: %q", out)
	}
	if !strings.Contains(out, "status=500") {
		t.Errorf("access log should record the 500: %q", out)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "dotcharts_renders_total 1\n")
	})

	srv, _ := newTestServer(t, &stubLayout{}, Config{Metrics: metrics, MetricsPath: "/internal/metrics"})
	rec := get(t, srv, "/internal/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "renders_total") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}

	srv, _ = newTestServer(t, &stubLayout{}, Config{})
	if rec := get(t, srv, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d, want 404", rec.Code)
	}
}

func TestRequestFromQuery(t *testing.T) {
	q := url.Values{
		"graph":  {"digraph{a}", "digraph{b}"},
		"format": {"png"},
		"engine": {"circo"},
		"width":  {"10"},
	}
	got := RequestFromQuery(q)
	want := render.Request{Graph: "digraph{a}", Format: "png", Engine: "circo", Width: "10"}
	if got != want {
		t.Errorf("RequestFromQuery() = %+v, want %+v", got, want)
	}
}

func TestServeGracefulShutdown(t *testing.T) {
	srv, logs := newTestServer(t, &stubLayout{svg: "<svg/>"}, Config{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if !strings.Contains(logs.String(), "listening") {
		t.Errorf("startup not logged: %q", logs.String())
	}
}

func TestListenURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"[::]:3000", "http://localhost:3000"},
		{"0.0.0.0:3000", "http://localhost:3000"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
	}
	for _, tt := range tests {
		addr, err := net.ResolveTCPAddr("tcp", tt.addr)
		if err != nil {
			t.Fatal(err)
		}
		if got := listenURL(addr); got != tt.want {
			t.Errorf("listenURL(%s) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
