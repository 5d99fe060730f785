// Package metrics provides Prometheus metrics collection for the gateway.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the gateway.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Module lifecycle metrics
	ModulesLoaded      prometheus.Gauge
	ModuleLoadFailures *prometheus.CounterVec

	// Module tree watcher
	ModuleTreeChanges prometheus.Counter

	// Merged schema
	SchemaBuilds prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on the given registerer.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toolgate",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "module", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "toolgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "module", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "toolgate",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		ModulesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "toolgate",
				Name:      "modules_loaded",
				Help:      "Number of modules mounted at startup",
			},
		),
		ModuleLoadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "toolgate",
				Name:      "module_load_failures_total",
				Help:      "Modules that failed to load or mount",
			},
			[]string{"module"},
		),
		ModuleTreeChanges: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "toolgate",
				Name:      "module_tree_changes_total",
				Help:      "Filesystem changes observed under the modules root since startup",
			},
		),
		SchemaBuilds: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "toolgate",
				Name:      "schema_builds_total",
				Help:      "Times the merged OpenAPI document was computed",
			},
		),
	}
}

// ModuleLabel derives the owning module label from a request path: the
// first path segment, or "root" for gateway-level routes.
func ModuleLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

// StatusLabel buckets a status code into its class.
func StatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
