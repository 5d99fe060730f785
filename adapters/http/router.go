package http

import (
	"net/http"
	"time"

	"github.com/artpar/toolgate/adapters/metrics"
	"github.com/artpar/toolgate/core/analytics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// RouterConfig carries the optional collaborators of the router.
type RouterConfig struct {
	Metrics     *metrics.Collector
	MetricsPath string // defaults to /metrics
	Analytics   analytics.Store
}

// NewRouter builds the gateway router: middleware stack, front-door
// endpoints, and documentation pages. Module sub-routers are grafted on
// afterwards with Mount.
func NewRouter(h *GatewayHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Browser tool consoles call the gateway cross-origin. Allow any
	// origin without credentials.
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler)

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))

		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}
	if cfg.Analytics != nil {
		r.Use(NewAnalyticsMiddleware(cfg.Analytics))
	}

	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Get("/time", h.Time)
	r.Get("/version", h.VersionInfo)

	// The raw and merged documents are the same merged specification
	// served under two names.
	r.Get("/openapi.json", h.OpenAPI)
	r.Get("/openapi-merged.json", h.OpenAPI)

	r.Get("/docs", redirectTo("/docs/index.html"))
	r.Get("/docs/*", swaggerUI("/openapi.json"))
	r.Get("/docs-merged", redirectTo("/docs-merged/index.html"))
	r.Get("/docs-merged/*", swaggerUI("/openapi-merged.json"))
	r.Get("/redoc", redocPage("Unified Tools API", "/openapi.json"))
	r.Get("/redoc-merged", redocPage("Unified Tools API", "/openapi-merged.json"))

	r.Get("/search", h.Search)
	r.Get("/stats", h.Stats)

	return r
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	}
}
