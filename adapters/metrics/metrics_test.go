package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWith(t *testing.T) {
	c := NewWith(prometheus.NewRegistry())

	c.RequestsTotal.WithLabelValues("GET", "weather", "2xx").Inc()
	c.RequestsTotal.WithLabelValues("GET", "weather", "2xx").Inc()
	c.ModulesLoaded.Set(3)

	if got := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("GET", "weather", "2xx")); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ModulesLoaded); got != 3 {
		t.Errorf("modules_loaded = %v, want 3", got)
	}
}

func TestModuleLabel(t *testing.T) {
	tests := []struct{ path, want string }{
		{"/weather/current", "weather"},
		{"/sql", "sql"},
		{"/", "root"},
		{"", "root"},
	}
	for _, tt := range tests {
		if got := ModuleLabel(tt.path); got != tt.want {
			t.Errorf("ModuleLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"}, {301, "3xx"}, {404, "4xx"}, {502, "5xx"}, {100, "other"},
	}
	for _, tt := range tests {
		if got := StatusLabel(tt.status); got != tt.want {
			t.Errorf("StatusLabel(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
