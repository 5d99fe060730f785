// Package http provides the gateway's HTTP surface: the front-door
// endpoints, the module mounter, and the request middleware.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/toolgate/core/analytics"
	"github.com/artpar/toolgate/core/openapi"
	"github.com/artpar/toolgate/core/registry"
	"github.com/artpar/toolgate/core/search"
	"github.com/rs/zerolog"
)

// Version is the release version, stamped at build time.
var Version = "dev"

// ToolInfo is one mounted module in the root listing.
type ToolInfo struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Docs    string `json:"docs"`
	OpenAPI string `json:"openapi"`
}

// IndexResponse is the root listing body.
type IndexResponse struct {
	Message string     `json:"message"`
	Tools   []ToolInfo `json:"tools"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the version endpoint body.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// GatewayHandler serves the gateway's own endpoints, everything that is
// not a mounted module route.
type GatewayHandler struct {
	registry  *registry.Registry
	openapi   *openapi.Service
	index     *search.Index   // nil when search is disabled
	analytics analytics.Store // nil when analytics is disabled
	logger    zerolog.Logger
	title     string
}

// GatewayDeps carries the collaborators of the front door. Index and
// Analytics are optional.
type GatewayDeps struct {
	Registry  *registry.Registry
	OpenAPI   *openapi.Service
	Index     *search.Index
	Analytics analytics.Store
	Logger    zerolog.Logger
	Title     string
}

// NewGatewayHandler creates the front-door handler.
func NewGatewayHandler(deps GatewayDeps) *GatewayHandler {
	title := deps.Title
	if title == "" {
		title = "Unified Tools API"
	}
	return &GatewayHandler{
		registry:  deps.Registry,
		openapi:   deps.OpenAPI,
		index:     deps.Index,
		analytics: deps.Analytics,
		logger:    deps.Logger,
		title:     title,
	}
}

// Index lists the mounted modules.
func (h *GatewayHandler) Index(w http.ResponseWriter, r *http.Request) {
	tools := make([]ToolInfo, 0, h.registry.Len())
	for _, e := range h.registry.List() {
		tools = append(tools, ToolInfo{
			Name:    e.Name,
			BaseURL: e.Prefix,
			Docs:    "/docs",
			OpenAPI: "/openapi.json",
		})
	}
	writeJSON(w, http.StatusOK, IndexResponse{Message: h.title, Tools: tools})
}

// Health reports liveness.
func (h *GatewayHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Time returns the server clock as epoch seconds.
func (h *GatewayHandler) Time(w http.ResponseWriter, r *http.Request) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	writeJSON(w, http.StatusOK, map[string]float64{"time": now})
}

// VersionInfo returns the gateway version.
func (h *GatewayHandler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: Version, Service: "toolgate"})
}

// OpenAPI serves the merged specification. /openapi.json and
// /openapi-merged.json both land here and return identical bytes.
func (h *GatewayHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	_, body, err := h.openapi.Merged()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build merged schema")
		writeJSONError(w, http.StatusInternalServerError, "schema build failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Search queries the operation index.
func (h *GatewayHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeJSONError(w, http.StatusNotFound, "search is disabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSONError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	docs, err := h.index.Search(q, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("query", q).Msg("operation search failed")
		writeJSONError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"count":   len(docs),
		"results": docs,
	})
}

// Stats returns per-module request aggregates from the analytics store.
func (h *GatewayHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		writeJSONError(w, http.StatusNotFound, "analytics is disabled")
		return
	}
	if err := h.analytics.Flush(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("analytics flush failed")
		writeJSONError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	summaries, err := h.analytics.ModuleSummaries(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read module summaries")
		writeJSONError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": summaries})
}

// SetIndex attaches the operation search index. Must be called before
// serving begins.
func (h *GatewayHandler) SetIndex(idx *search.Index) {
	h.index = idx
}

// GatewayOps describes the front-door endpoints for the merged schema.
func GatewayOps() []openapi.GatewayOp {
	return []openapi.GatewayOp{
		{Path: "/", Method: "GET", OperationID: "index", Summary: "List mounted tool modules", Tags: []string{"gateway"}},
		{Path: "/health", Method: "GET", OperationID: "health", Summary: "Health check", Tags: []string{"gateway"}},
		{Path: "/time", Method: "GET", OperationID: "time", Summary: "Server time in epoch seconds", Tags: []string{"gateway"}},
		{Path: "/version", Method: "GET", OperationID: "version", Summary: "Gateway version", Tags: []string{"gateway"}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
