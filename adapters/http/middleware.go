package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/toolgate/adapters/metrics"
	"github.com/artpar/toolgate/core/analytics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// internalPath reports whether a path belongs to the gateway's own
// plumbing and should be excluded from metrics and analytics. Matches on
// the first path segment so module names like "docsify" stay visible.
func internalPath(path string) bool {
	seg := strings.TrimPrefix(path, "/")
	if i := strings.Index(seg, "/"); i >= 0 {
		seg = seg[:i]
	}
	switch seg {
	case "metrics", "health", "docs", "docs-merged", "redoc", "redoc-merged":
		return true
	}
	return false
}

// NewLoggingMiddleware logs each handled request at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if internalPath(r.URL.Path) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware records request counts and latency per module.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			module := metrics.ModuleLabel(r.URL.Path)
			status := metrics.StatusLabel(ww.Status())
			m.RequestsTotal.WithLabelValues(r.Method, module, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, module, status).Observe(time.Since(start).Seconds())
		})
	}
}

// NewAnalyticsMiddleware records request events into the analytics store.
func NewAnalyticsMiddleware(store analytics.Store) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			store.Record(analytics.Event{
				Timestamp:  start,
				Module:     metrics.ModuleLabel(r.URL.Path),
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: ww.Status(),
				DurationNS: int64(time.Since(start)),
			})
		})
	}
}
