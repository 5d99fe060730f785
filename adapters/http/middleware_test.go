package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/toolgate/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInternalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/metrics", true},
		{"/health", true},
		{"/docs", true},
		{"/docs/index.html", true},
		{"/docs-merged", true},
		{"/redoc", true},
		{"/redoc-merged", true},
		{"/", false},
		{"/weather/forecast", false},
		// Module names sharing a gateway-route prefix are not internal.
		{"/docsify/readme", false},
		{"/healthz", false},
		{"/redoctor/scan", false},
	}
	for _, tt := range tests {
		if got := internalPath(tt.path); got != tt.want {
			t.Errorf("internalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMetricsMiddlewareCountsModuleRequests(t *testing.T) {
	m := metrics.NewWith(prometheus.NewRegistry())
	handler := NewMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/docsify/readme", "/docs/index.html"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "docsify", "2xx")); got != 1 {
		t.Errorf("docsify requests counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "docs", "2xx")); got != 0 {
		t.Errorf("docs requests counted = %v, want 0", got)
	}
}
