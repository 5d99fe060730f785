package openapi

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/artpar/toolgate/core/registry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// GatewayOp describes one gateway-level (front door) operation that takes
// part in the merged document alongside mounted module routes.
type GatewayOp struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
	Tags        []string
}

// Service builds and caches the merged specification. The routing tree is
// immutable once serving starts, so the document is computed at most once
// per process lifetime and then served from cache; a reload requires a
// fresh process.
type Service struct {
	info    Info
	reg     *registry.Registry
	gateway []GatewayOp
	logger  zerolog.Logger

	cache   atomic.Pointer[merged]
	group   singleflight.Group
	builds  atomic.Int64 // observable build count, for tests and logs
	onBuild func()
}

// merged holds the built spec together with its serialized form so every
// response is byte-identical.
type merged struct {
	spec *Spec
	json []byte
}

// NewService creates the schema aggregation service.
func NewService(info Info, reg *registry.Registry, logger zerolog.Logger) *Service {
	return &Service{info: info, reg: reg, logger: logger}
}

// AddGatewayOps registers front-door operations. Must be called before
// serving begins; the first Merged call freezes the document.
func (s *Service) AddGatewayOps(ops ...GatewayOp) {
	s.gateway = append(s.gateway, ops...)
}

// Merged returns the merged specification and its JSON serialization.
// The first computation is guarded so concurrent first requests build the
// document once; later calls return the cached value.
func (s *Service) Merged() (*Spec, []byte, error) {
	if m := s.cache.Load(); m != nil {
		return m.spec, m.json, nil
	}

	v, err, _ := s.group.Do("merged", func() (any, error) {
		if m := s.cache.Load(); m != nil {
			return m, nil
		}
		m, err := s.build()
		if err != nil {
			return nil, err
		}
		s.cache.Store(m)
		return m, nil
	})
	if err != nil {
		return nil, nil, err
	}

	m := v.(*merged)
	return m.spec, m.json, nil
}

// Builds returns how many times the document has actually been computed.
func (s *Service) Builds() int64 { return s.builds.Load() }

// SetBuildHook registers a callback invoked each time the merged document
// is computed. Must be set before serving begins.
func (s *Service) SetBuildHook(fn func()) {
	s.onBuild = fn
}

func (s *Service) build() (*merged, error) {
	s.builds.Add(1)
	if s.onBuild != nil {
		s.onBuild()
	}

	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    s.info,
		Paths:   make(map[string]PathItem),
	}

	for _, op := range s.gateway {
		addOperation(spec, op.Path, op.Method, &Operation{
			Tags:        op.Tags,
			Summary:     op.Summary,
			OperationID: op.OperationID,
			Responses:   defaultResponses(),
		})
	}

	for _, e := range s.reg.List() {
		spec.Tags = append(spec.Tags, Tag{Name: e.Name, Description: e.App.Title})
		for _, rt := range e.Routes {
			addOperation(spec, e.Prefix+rt.Path, rt.Method, &Operation{
				Tags:        withModuleTag(rt.Tags, e.Name),
				Summary:     rt.Summary,
				Description: rt.Description,
				OperationID: rt.OperationID,
				Responses:   defaultResponses(),
			})
		}
	}

	RewriteOperationIDs(spec)

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize merged spec: %w", err)
	}

	s.logger.Debug().
		Int("paths", len(spec.Paths)).
		Int("modules", s.reg.Len()).
		Msg("merged openapi document built")

	return &merged{spec: spec, json: data}, nil
}

func addOperation(spec *Spec, path, method string, op *Operation) {
	item := spec.Paths[path]
	item.set(method, op)
	spec.Paths[path] = item
}

// withModuleTag ensures the mount prefix's name tags the operation for
// documentation grouping.
func withModuleTag(tags []string, module string) []string {
	for _, t := range tags {
		if t == module {
			return tags
		}
	}
	return append([]string{module}, tags...)
}

func defaultResponses() map[string]Response {
	return map[string]Response{
		"200": {Description: "Successful Response"},
	}
}
