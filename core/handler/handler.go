// Package handler provides the build-time registry of route handler kinds.
// Module manifests bind their routes to registered kinds by name; the
// gateway never executes module-supplied code.
package handler

import (
	"fmt"
	"sort"
	"sync"

	"net/http"
)

// Factory builds an http.Handler for one route from the handler config in
// the module's manifest. moduleDir is the module's own directory, for kinds
// that serve module-local files.
type Factory func(moduleDir string, cfg map[string]any) (http.Handler, error)

// Registry maps handler kind names to factories.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Factory
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Factory)}
}

// Register adds a handler kind. Duplicate kinds are an error.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("handler kind %q already registered", kind)
	}
	r.kinds[kind] = f
	return nil
}

// Resolve builds a handler of the named kind. An unknown kind or a factory
// failure is a module-initialization error for the caller to isolate.
func (r *Registry) Resolve(kind, moduleDir string, cfg map[string]any) (http.Handler, error) {
	r.mu.RLock()
	f, ok := r.kinds[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown handler kind %q", kind)
	}
	h, err := f(moduleDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("handler kind %q: %w", kind, err)
	}
	return h, nil
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
