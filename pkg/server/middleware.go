package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/dotcharts/pkg/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// requestID takes the caller's X-Request-ID or assigns a fresh UUID. The id
// is echoed in the response and stored where middleware.GetReqID finds it.
// chi's middleware.RequestID issues "host/prefix-000001" ids and never sets
// the response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseStatus reports 200 for handlers that never wrote a header.
func responseStatus(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// logFormatter feeds chi's RequestLogger and Recoverer into the service
// logger.
type logFormatter struct {
	logger *log.Logger
}

func (f logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{logger: f.logger, r: r}
}

type logEntry struct {
	logger *log.Logger
	r      *http.Request
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	e.logger.Info("request",
		"method", e.r.Method,
		"path", e.r.URL.Path,
		"status", status,
		"bytes", bytes,
		"duration", elapsed.Round(time.Microsecond),
		"remote", e.r.RemoteAddr,
		"request_id", middleware.GetReqID(e.r.Context()))
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("panic serving request",
		"panic", v,
		"path", e.r.URL.Path,
		"request_id", middleware.GetReqID(e.r.Context()),
		"stack", string(stack))
}

// httpHooks reports requests to the registered [observability.HTTPHooks].
// Responses are labeled with the matched route pattern, not the raw path.
func httpHooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		hooks.OnResponse(r.Context(), r.Method, route, responseStatus(ww), time.Since(start))
	})
}
