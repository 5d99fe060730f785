package openapi

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/toolgate/core/manifest"
	"github.com/artpar/toolgate/core/registry"
	"github.com/rs/zerolog"
)

func TestFirstSegment(t *testing.T) {
	tests := []struct{ path, want string }{
		{"/weather/current", "weather"},
		{"/sql", "sql"},
		{"/health", "health"},
		{"/", "root"},
		{"", "root"},
	}
	for _, tt := range tests {
		if got := FirstSegment(tt.path); got != tt.want {
			t.Errorf("FirstSegment(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func newService(t *testing.T) (*Service, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	svc := NewService(Info{Title: "Unified Tools API", Version: "1.0.0"}, reg, zerolog.Nop())
	return svc, reg
}

func registerModule(t *testing.T, reg *registry.Registry, name string, routes ...manifest.Route) {
	t.Helper()
	err := reg.Register(registry.Entry{
		Name:   name,
		Prefix: "/" + name,
		App:    manifest.App{Title: name + " API"},
		Routes: routes,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMergedRewritesCollidingOperationIDs(t *testing.T) {
	svc, reg := newService(t)

	// Two independently authored modules that chose the same identifier.
	registerModule(t, reg, "weather", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})
	registerModule(t, reg, "sql", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})

	spec, _, err := svc.Merged()
	if err != nil {
		t.Fatalf("Merged() error = %v", err)
	}

	w := spec.Paths["/weather/data"].Get
	s := spec.Paths["/sql/data"].Get
	if w == nil || s == nil {
		t.Fatal("merged spec missing module paths")
	}
	if w.OperationID != "weather__get_data" {
		t.Errorf("weather operationId = %q, want weather__get_data", w.OperationID)
	}
	if s.OperationID != "sql__get_data" {
		t.Errorf("sql operationId = %q, want sql__get_data", s.OperationID)
	}

	// No two paths share a rewritten identifier.
	seen := make(map[string]string)
	for path, item := range spec.Paths {
		for _, op := range item.operations() {
			if prev, dup := seen[op.OperationID]; dup {
				t.Errorf("operationId %q claimed by both %s and %s", op.OperationID, prev, path)
			}
			seen[op.OperationID] = path
		}
	}
}

func TestMergedIncludesGatewayOps(t *testing.T) {
	svc, reg := newService(t)
	registerModule(t, reg, "weather", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})
	svc.AddGatewayOps(
		GatewayOp{Path: "/", Method: "GET", OperationID: "index"},
		GatewayOp{Path: "/health", Method: "GET", OperationID: "health"},
	)

	spec, _, err := svc.Merged()
	if err != nil {
		t.Fatalf("Merged() error = %v", err)
	}

	if op := spec.Paths["/"].Get; op == nil || op.OperationID != "root__index" {
		t.Errorf("index operationId = %+v, want root__index", op)
	}
	if op := spec.Paths["/health"].Get; op == nil || op.OperationID != "health__health" {
		t.Errorf("health operationId = %+v, want health__health", op)
	}
}

func TestMergedTagsRoutesWithModuleName(t *testing.T) {
	svc, reg := newService(t)
	registerModule(t, reg, "weather",
		manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data", Tags: []string{"forecast"}})

	spec, _, err := svc.Merged()
	if err != nil {
		t.Fatal(err)
	}

	op := spec.Paths["/weather/data"].Get
	if len(op.Tags) != 2 || op.Tags[0] != "weather" || op.Tags[1] != "forecast" {
		t.Errorf("Tags = %v, want [weather forecast]", op.Tags)
	}
	if len(spec.Tags) != 1 || spec.Tags[0].Name != "weather" {
		t.Errorf("spec.Tags = %v", spec.Tags)
	}
}

func TestMergedCachedOnce(t *testing.T) {
	svc, reg := newService(t)
	registerModule(t, reg, "weather", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})

	_, first, err := svc.Merged()
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := svc.Merged()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Error("sequential Merged() calls must return byte-identical output")
	}
	if svc.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", svc.Builds())
	}
}

func TestBuildHookFiresPerBuild(t *testing.T) {
	svc, reg := newService(t)
	registerModule(t, reg, "weather", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})

	builds := 0
	svc.SetBuildHook(func() { builds++ })

	if _, _, err := svc.Merged(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Merged(); err != nil {
		t.Fatal(err)
	}

	// The cache answers the second call, so the hook fires exactly once.
	if builds != 1 {
		t.Errorf("build hook fired %d times, want 1", builds)
	}
}

func TestMergedConcurrentFirstRequests(t *testing.T) {
	svc, reg := newService(t)
	registerModule(t, reg, "weather", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.Merged(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if svc.Builds() != 1 {
		t.Errorf("Builds() = %d after concurrent first requests, want 1", svc.Builds())
	}
}

func TestMergedJSONShape(t *testing.T) {
	svc, reg := newService(t)
	registerModule(t, reg, "weather", manifest.Route{Path: "/data", Method: "GET", OperationID: "get_data"})

	_, data, err := svc.Merged()
	if err != nil {
		t.Fatal(err)
	}

	s := string(data)
	for _, want := range []string{`"openapi": "3.0.3"`, `"/weather/data"`, `"weather__get_data"`, `"Unified Tools API"`} {
		if !strings.Contains(s, want) {
			t.Errorf("serialized spec missing %s", want)
		}
	}
}
