package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/dotcharts/pkg/errors"
)

// Prometheus implements every hook interface on top of Prometheus
// collectors.
type Prometheus struct {
	renders         *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	renderBytes     *prometheus.HistogramVec
	rendersInFlight prometheus.Gauge

	cacheEvents *prometheus.CounterVec
	cacheBytes  prometheus.Counter

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dotcharts_renders_total",
			Help: "Renders by engine, output format and result code",
		}, []string{"engine", "format", "result"}),
		renderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dotcharts_render_duration_seconds",
			Help:    "Time spent producing an image",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"engine", "format"}),
		renderBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dotcharts_render_bytes",
			Help:    "Size of successfully rendered images",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B to 4MB
		}, []string{"format"}),
		rendersInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "dotcharts_renders_in_flight",
			Help: "Renders currently running or waiting for an engine",
		}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dotcharts_cache_events_total",
			Help: "Cache lookups and writes by key type and event",
		}, []string{"key_type", "event"}),
		cacheBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "dotcharts_cache_written_bytes_total",
			Help: "Bytes written to the render cache",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dotcharts_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dotcharts_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Install registers p as the global render, cache and HTTP hooks.
func (p *Prometheus) Install() {
	SetRenderHooks(p)
	SetCacheHooks(p)
	SetHTTPHooks(p)
}

func (p *Prometheus) OnRenderStart(ctx context.Context, engine, format string) {
	p.rendersInFlight.Inc()
}

func (p *Prometheus) OnRenderComplete(ctx context.Context, engine, format string, size int, d time.Duration, err error) {
	p.rendersInFlight.Dec()
	p.renders.WithLabelValues(engine, format, resultLabel(err)).Inc()
	p.renderDuration.WithLabelValues(engine, format).Observe(d.Seconds())
	if err == nil {
		p.renderBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (p *Prometheus) OnCacheHit(ctx context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(ctx context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(ctx context.Context, keyType string, size int) {
	p.cacheEvents.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.Add(float64(size))
}

func (p *Prometheus) OnRequest(ctx context.Context, method, path string) {}

func (p *Prometheus) OnResponse(ctx context.Context, method, path string, status int, d time.Duration) {
	p.requests.WithLabelValues(method, path, statusLabel(status)).Inc()
	p.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// resultLabel keeps label cardinality bounded to the error codes.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errors.GetCode(err); code != "" {
		return string(code)
	}
	return "error"
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var (
	_ RenderHooks = (*Prometheus)(nil)
	_ CacheHooks  = (*Prometheus)(nil)
	_ HTTPHooks   = (*Prometheus)(nil)
)
