// Package registry tracks the modules loaded into the gateway process.
// Each module is registered under a sanitized version of its directory
// name so independently authored modules cannot collide in the
// process-wide namespace.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/toolgate/core/manifest"
)

// Entry is one registered module.
type Entry struct {
	Name      string // directory name
	Sanitized string // registry key
	Prefix    string // mount prefix
	App       manifest.App
	Routes    []manifest.Route
}

// Registry manages registered modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Entry
}

// New creates a new registry.
func New() *Registry {
	return &Registry{modules: make(map[string]Entry)}
}

// Register adds a module. Returns an error when the sanitized name is
// already claimed.
func (r *Registry) Register(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Sanitized == "" {
		e.Sanitized = Sanitize(e.Name)
	}
	if existing, exists := r.modules[e.Sanitized]; exists {
		return fmt.Errorf("name %q already claimed by module %q", e.Sanitized, existing.Name)
	}
	r.modules[e.Sanitized] = e
	return nil
}

// Remove drops a module, e.g. after a mount failure, so the listing and
// schema stay consistent with the routing tree.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, Sanitize(name))
}

// Get returns a registered module by directory name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.modules[Sanitize(name)]
	return e, ok
}

// List returns all registered modules, sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.modules))
	for _, e := range r.modules {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Sanitize replaces every character that is not a letter, digit or
// underscore with an underscore, yielding a collision-safe registry name.
func Sanitize(name string) string {
	out := []rune(name)
	for i, c := range out {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		out[i] = '_'
	}
	return string(out)
}
