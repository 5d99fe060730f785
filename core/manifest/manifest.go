// Package manifest parses tool module entry points.
//
// A module declares its application object and route table in module.yaml.
// Package-style modules may carry an index.yaml with shared defaults and
// split their route table across sibling fragment files referenced with
// $include directives; flat modules are a single self-contained file.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxIncludeDepth bounds nested includes so cyclic references fail fast.
const maxIncludeDepth = 8

// App is the application object a module must expose to be aggregatable.
type App struct {
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// HandlerSpec binds a route to a registered handler kind.
type HandlerSpec struct {
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config"`
}

// Route is one entry of a module's route table. Path is relative to the
// module's own root until the route is mounted.
type Route struct {
	Path        string      `yaml:"path"`
	Method      string      `yaml:"method"`
	OperationID string      `yaml:"operation_id"`
	Summary     string      `yaml:"summary"`
	Description string      `yaml:"description"`
	Tags        []string    `yaml:"tags"`
	Handler     HandlerSpec `yaml:"handler"`
}

// Defaults are package-level settings applied to every route that does not
// set its own.
type Defaults struct {
	Tags    []string    `yaml:"tags"`
	Handler HandlerSpec `yaml:"handler"`
}

// packageContext is the parsed package marker (index.yaml).
type packageContext struct {
	Defaults Defaults `yaml:"defaults"`
}

// Manifest is a fully resolved module manifest.
type Manifest struct {
	App    *App
	Routes []Route
}

// rawManifest keeps route entries as raw nodes so $include directives can
// be told apart from inline routes.
type rawManifest struct {
	App    *App        `yaml:"app"`
	Routes []yaml.Node `yaml:"routes"`
}

// ParseFlat loads an entry point with no package context. Relative include
// directives are refused; a flat module must be self-contained.
func ParseFlat(entryPath string) (*Manifest, error) {
	return parse(entryPath, filepath.Dir(entryPath), false, Defaults{})
}

// ParsePackage loads an entry point as a sub-unit of a package rooted at
// dir. The package marker, when present, is parsed first so its defaults
// apply to the entry point and every included fragment; $include targets
// resolve against files inside dir.
func ParsePackage(dir, entryPath, markerPath string) (*Manifest, error) {
	var ctx packageContext
	if markerPath != "" {
		data, err := os.ReadFile(markerPath)
		if err == nil {
			if err := yaml.Unmarshal(data, &ctx); err != nil {
				return nil, fmt.Errorf("parse package marker: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read package marker: %w", err)
		}
	}
	return parse(entryPath, dir, true, ctx.Defaults)
}

func parse(entryPath, dir string, allowInclude bool, def Defaults) (*Manifest, error) {
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("read entry point: %w", err)
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse entry point: %w", err)
	}

	routes, err := decodeRoutes(raw.Routes, dir, allowInclude, 0, def)
	if err != nil {
		return nil, err
	}

	return &Manifest{App: raw.App, Routes: routes}, nil
}

func decodeRoutes(nodes []yaml.Node, dir string, allowInclude bool, depth int, def Defaults) ([]Route, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)
	}

	var out []Route
	for i := range nodes {
		node := &nodes[i]

		if target, ok := includeTarget(node); ok {
			if !allowInclude {
				return nil, fmt.Errorf("relative include %q requires package loading", target)
			}
			included, err := loadFragment(dir, target, depth, def)
			if err != nil {
				return nil, err
			}
			out = append(out, included...)
			continue
		}

		var rt Route
		if err := node.Decode(&rt); err != nil {
			return nil, fmt.Errorf("decode route: %w", err)
		}
		applyDefaults(&rt, def)
		if err := validateRoute(&rt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, nil
}

// includeTarget reports whether a route node is a single-key $include
// directive and returns its target.
func includeTarget(node *yaml.Node) (string, bool) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", false
	}
	if node.Content[0].Value != "$include" {
		return "", false
	}
	return node.Content[1].Value, true
}

// loadFragment reads a sibling fragment containing a route list. Targets
// must stay inside the module directory.
func loadFragment(dir, target string, depth int, def Defaults) ([]Route, error) {
	if !strings.HasPrefix(target, "./") {
		return nil, fmt.Errorf("include target %q must be relative to the module directory", target)
	}
	clean := filepath.Clean(target)
	if strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("include target %q escapes the module directory", target)
	}

	path := filepath.Join(dir, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read include %q: %w", target, err)
	}

	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse include %q: %w", target, err)
	}
	return decodeRoutes(nodes, dir, true, depth+1, def)
}

func applyDefaults(rt *Route, def Defaults) {
	if rt.Handler.Kind == "" {
		rt.Handler.Kind = def.Handler.Kind
		if rt.Handler.Config == nil {
			rt.Handler.Config = def.Handler.Config
		}
	}
	if len(def.Tags) > 0 {
		rt.Tags = mergeTags(def.Tags, rt.Tags)
	}
}

func mergeTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, t := range append(append([]string{}, base...), extra...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validateRoute(rt *Route) error {
	if rt.Path == "" || !strings.HasPrefix(rt.Path, "/") {
		return fmt.Errorf("route path %q must start with /", rt.Path)
	}
	rt.Method = strings.ToUpper(rt.Method)
	switch rt.Method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
	case "":
		rt.Method = "GET"
	default:
		return fmt.Errorf("route %s: unsupported method %q", rt.Path, rt.Method)
	}
	if rt.Handler.Kind == "" {
		return fmt.Errorf("route %s %s: no handler kind", rt.Method, rt.Path)
	}
	if rt.OperationID == "" {
		rt.OperationID = deriveOperationID(rt.Method, rt.Path)
	}
	return nil
}

// deriveOperationID builds a default identifier from method and path,
// e.g. GET /forecast/daily -> get_forecast_daily.
func deriveOperationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		b.WriteByte('_')
		for _, c := range seg {
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
				b.WriteRune(c)
			} else {
				b.WriteByte('_')
			}
		}
	}
	return b.String()
}
