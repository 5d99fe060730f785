// Package loader loads discovered modules in isolation. A failing module
// is reported through the returned LoadedModule, never by panicking or by
// aborting the rest of the load sequence.
package loader

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/artpar/toolgate/core/descriptor"
	"github.com/artpar/toolgate/core/handler"
	"github.com/artpar/toolgate/core/manifest"
	"github.com/artpar/toolgate/core/registry"
	"github.com/rs/zerolog"
)

// ErrNoApp is returned when a module's entry point parses cleanly but
// exposes no application object.
var ErrNoApp = errors.New("no app object in entry point")

// BoundRoute pairs a route declaration with its resolved handler.
type BoundRoute struct {
	manifest.Route
	Handler http.Handler
}

// LoadedModule is the result of loading one module. When Err is non-nil
// the module contributes no routes and is excluded from the routing tree
// and the merged schema.
type LoadedModule struct {
	Descriptor descriptor.Descriptor
	App        *manifest.App
	Routes     []BoundRoute
	Err        error
}

// Failed reports whether the module failed to load.
func (m LoadedModule) Failed() bool { return m.Err != nil }

// Loader resolves module manifests against the handler registry and
// registers successful loads in the module registry.
type Loader struct {
	registry *registry.Registry
	handlers *handler.Registry
	logger   zerolog.Logger
}

// New creates a loader.
func New(reg *registry.Registry, handlers *handler.Registry, logger zerolog.Logger) *Loader {
	return &Loader{registry: reg, handlers: handlers, logger: logger}
}

// Load loads a single module. Any failure is captured in the returned
// LoadedModule and logged with the module name; it never propagates.
func (l *Loader) Load(d descriptor.Descriptor) LoadedModule {
	l.logger.Debug().
		Str("module", d.Name).
		Str("strategy", d.Strategy.String()).
		Msg("loading module")

	mod := l.load(d)
	if mod.Err != nil {
		l.logger.Warn().
			Str("module", d.Name).
			Err(mod.Err).
			Msg("skipping module")
		return mod
	}

	l.logger.Debug().
		Str("module", d.Name).
		Str("prefix", d.Prefix).
		Int("routes", len(mod.Routes)).
		Msg("module loaded")
	return mod
}

// LoadAll loads every descriptor in order. Failures are isolated per
// module; the returned slice always has one entry per descriptor.
func (l *Loader) LoadAll(descs []descriptor.Descriptor) []LoadedModule {
	out := make([]LoadedModule, 0, len(descs))
	loaded := 0
	for _, d := range descs {
		mod := l.Load(d)
		if !mod.Failed() {
			loaded++
		}
		out = append(out, mod)
	}
	l.logger.Info().
		Int("discovered", len(descs)).
		Int("loaded", loaded).
		Msg("module loading complete")
	return out
}

func (l *Loader) load(d descriptor.Descriptor) LoadedModule {
	entry := filepath.Join(d.Dir, descriptor.EntryFile)

	var m *manifest.Manifest
	var err error
	switch d.Strategy {
	case descriptor.StrategyPackage:
		marker := filepath.Join(d.Dir, descriptor.MarkerFile)
		m, err = manifest.ParsePackage(d.Dir, entry, marker)
	default:
		m, err = manifest.ParseFlat(entry)
	}
	if err != nil {
		return LoadedModule{Descriptor: d, Err: fmt.Errorf("load entry point: %w", err)}
	}
	if m.App == nil {
		return LoadedModule{Descriptor: d, Err: ErrNoApp}
	}

	bound := make([]BoundRoute, 0, len(m.Routes))
	for _, rt := range m.Routes {
		h, err := l.handlers.Resolve(rt.Handler.Kind, d.Dir, rt.Handler.Config)
		if err != nil {
			return LoadedModule{Descriptor: d, Err: fmt.Errorf("route %s %s: %w", rt.Method, rt.Path, err)}
		}
		bound = append(bound, BoundRoute{Route: rt, Handler: h})
	}

	err = l.registry.Register(registry.Entry{
		Name:      d.Name,
		Sanitized: registry.Sanitize(d.Name),
		Prefix:    d.Prefix,
		App:       *m.App,
		Routes:    m.Routes,
	})
	if err != nil {
		return LoadedModule{Descriptor: d, Err: fmt.Errorf("register module: %w", err)}
	}

	return LoadedModule{Descriptor: d, App: m.App, Routes: bound}
}
