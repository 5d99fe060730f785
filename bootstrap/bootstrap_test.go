package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/toolgate/config"
)

const weatherEntry = `
app:
  title: Weather API
  version: 1.0.0
routes:
  - path: /forecast
    method: GET
    operation_id: get_forecast
    summary: Daily forecast
    handler:
      kind: static
      config:
        body:
          forecast: sunny
`

const sqlMarker = `
defaults:
  tags: [database]
`

const sqlEntry = `
app:
  title: SQL API
  version: 1.0.0
routes:
  - $include: ./routes.yaml
`

const sqlRoutes = `
- path: /query
  method: POST
  operation_id: run_query
  handler:
    kind: echo
`

func writeModule(t *testing.T, root, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Modules.Root = root
	cfg.Search.Enabled = true
	return cfg
}

func TestGatewayEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "weather", map[string]string{"module.yaml": weatherEntry})
	writeModule(t, root, "sql", map[string]string{
		"module.yaml": sqlEntry,
		"index.yaml":  sqlMarker,
		"routes.yaml": sqlRoutes,
	})
	// Broken: entry point exists but has no app object.
	writeModule(t, root, "broken", map[string]string{
		"module.yaml": "routes: []\n",
	})

	app, err := New(testConfig(root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Shutdown()

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	// Listing contains only the modules that loaded.
	var index struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	mustGetJSON(t, srv.URL+"/", &index)
	if len(index.Tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(index.Tools))
	}
	if index.Tools[0].Name != "sql" || index.Tools[1].Name != "weather" {
		t.Errorf("tool order = %v", index.Tools)
	}

	// Mounted routes serve under their prefix.
	resp, err := http.Get(srv.URL + "/weather/forecast")
	if err != nil {
		t.Fatal(err)
	}
	var forecast map[string]string
	json.NewDecoder(resp.Body).Decode(&forecast)
	resp.Body.Close()
	if forecast["forecast"] != "sunny" {
		t.Errorf("forecast body = %v", forecast)
	}

	// The broken module's paths fall through to 404.
	resp, err = http.Get(srv.URL + "/broken/anything")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("broken module status = %d, want 404", resp.StatusCode)
	}

	// The merged schema carries rewritten operation ids from both modules.
	var spec struct {
		Paths map[string]map[string]struct {
			OperationID string `json:"operationId"`
		} `json:"paths"`
	}
	mustGetJSON(t, srv.URL+"/openapi.json", &spec)
	if got := spec.Paths["/weather/forecast"]["get"].OperationID; got != "weather__get_forecast" {
		t.Errorf("operationId = %q, want weather__get_forecast", got)
	}
	if got := spec.Paths["/sql/query"]["post"].OperationID; got != "sql__run_query" {
		t.Errorf("operationId = %q, want sql__run_query", got)
	}
	if _, ok := spec.Paths["/health"]; !ok {
		t.Error("schema is missing the gateway /health operation")
	}

	// Search finds mounted operations.
	var results struct {
		Count int `json:"count"`
	}
	mustGetJSON(t, srv.URL+"/search?q=forecast", &results)
	if results.Count != 1 {
		t.Errorf("search count = %d, want 1", results.Count)
	}
}

func TestDiscoveryFailureIsFatal(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	if _, err := New(cfg); err == nil {
		t.Error("New() should fail when the modules root does not exist")
	}
}

func TestEmptyRootStartsClean(t *testing.T) {
	app, err := New(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Shutdown()

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	var health struct {
		Status string `json:"status"`
	}
	mustGetJSON(t, srv.URL+"/health", &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if app.Registry.Len() != 0 {
		t.Errorf("registry has %d modules, want 0", app.Registry.Len())
	}
}

func TestReservedModuleNameIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "weather", map[string]string{"module.yaml": weatherEntry})
	writeModule(t, root, "health", map[string]string{"module.yaml": weatherEntry})

	app, err := New(testConfig(root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Shutdown()

	if app.Registry.Len() != 1 {
		t.Fatalf("registry has %d modules, want 1", app.Registry.Len())
	}
	if _, ok := app.Registry.Get("weather"); !ok {
		t.Error("weather module missing from registry")
	}

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	// /health still answers as the gateway's own endpoint.
	var health struct {
		Status string `json:"status"`
	}
	mustGetJSON(t, srv.URL+"/health", &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
}

func mustGetJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
