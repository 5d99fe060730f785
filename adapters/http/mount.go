package http

import (
	"fmt"
	"strings"

	"github.com/artpar/toolgate/core/loader"
	"github.com/go-chi/chi/v5"
)

// reservedPrefixes are the gateway's own first path segments. A module
// whose mount prefix collides with one of them would shadow a front-door
// route, so the mount is refused.
var reservedPrefixes = map[string]struct{}{
	"health":              {},
	"time":                {},
	"version":             {},
	"docs":                {},
	"docs-merged":         {},
	"redoc":               {},
	"redoc-merged":        {},
	"openapi.json":        {},
	"openapi-merged.json": {},
	"metrics":             {},
	"search":              {},
	"stats":               {},
}

// Mount grafts a loaded module's routes onto the parent router at the
// module's prefix. The routing tree is append-only: nothing is ever
// unmounted, so a mount failure must be caught here, before the graft,
// or recovered from chi's panic.
func Mount(parent chi.Router, mod loader.LoadedModule) (err error) {
	prefix := "/" + mod.Descriptor.Name
	segment := strings.TrimPrefix(prefix, "/")
	if _, reserved := reservedPrefixes[segment]; reserved {
		return fmt.Errorf("prefix %q is reserved by the gateway", prefix)
	}

	sub := chi.NewRouter()
	for _, route := range mod.Routes {
		if err := addRoute(sub, route); err != nil {
			return fmt.Errorf("route %s %s: %w", route.Method, route.Path, err)
		}
	}

	// chi reports mount conflicts by panicking; convert to an error so
	// one bad module cannot take down the gateway.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mounting %s: %v", prefix, r)
		}
	}()
	parent.Mount(prefix, sub)
	return nil
}

func addRoute(r chi.Router, route loader.BoundRoute) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	r.Method(route.Method, route.Path, route.Handler)
	return nil
}

// Reserved reports whether a module name would collide with a gateway
// route once sanitized into a mount prefix.
func Reserved(name string) bool {
	_, ok := reservedPrefixes[name]
	return ok
}
