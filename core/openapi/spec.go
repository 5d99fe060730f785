// Package openapi builds the gateway's merged OpenAPI 3.0 document from
// the routing tree assembled at startup.
package openapi

import "strings"

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI string              `json:"openapi"`
	Info    Info                `json:"info"`
	Paths   map[string]PathItem `json:"paths"`
	Tags    []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get     *Operation `json:"get,omitempty"`
	Post    *Operation `json:"post,omitempty"`
	Put     *Operation `json:"put,omitempty"`
	Patch   *Operation `json:"patch,omitempty"`
	Delete  *Operation `json:"delete,omitempty"`
	Head    *Operation `json:"head,omitempty"`
	Options *Operation `json:"options,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Response represents an API response.
type Response struct {
	Description string `json:"description"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// set stores an operation under the given HTTP method.
func (p *PathItem) set(method string, op *Operation) {
	switch method {
	case "GET":
		p.Get = op
	case "POST":
		p.Post = op
	case "PUT":
		p.Put = op
	case "PATCH":
		p.Patch = op
	case "DELETE":
		p.Delete = op
	case "HEAD":
		p.Head = op
	case "OPTIONS":
		p.Options = op
	}
}

// operations returns the non-nil operations of a path item.
func (p *PathItem) operations() []*Operation {
	var out []*Operation
	for _, op := range []*Operation{p.Get, p.Post, p.Put, p.Patch, p.Delete, p.Head, p.Options} {
		if op != nil {
			out = append(out, op)
		}
	}
	return out
}

// FirstSegment returns the first non-empty segment of a path, or "root"
// for gateway-level routes that have none. It is the namespace used to
// keep operation identifiers globally unique: the first segment of a
// mounted route is always the module's sanitized directory name.
func FirstSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

// RewriteOperationIDs prefixes every operation identifier with the first
// path segment, guaranteeing uniqueness across independently authored
// modules even when they chose the same identifier.
func RewriteOperationIDs(spec *Spec) {
	for path, item := range spec.Paths {
		seg := FirstSegment(path)
		for _, op := range item.operations() {
			if op.OperationID != "" {
				op.OperationID = seg + "__" + op.OperationID
			}
		}
	}
}
