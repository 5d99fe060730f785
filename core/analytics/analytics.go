// Package analytics records per-request events for the gateway and serves
// aggregated per-module statistics. It stores gateway telemetry only; the
// data flowing through mounted tools is never persisted.
package analytics

import (
	"context"
	"time"
)

// Event is one handled request.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Module     string    `json:"module"` // first path segment, "root" for front-door routes
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	DurationNS int64     `json:"duration_ns"`
}

// ModuleSummary aggregates events per mounted module.
type ModuleSummary struct {
	Module        string `json:"module"`
	Requests      int64  `json:"requests"`
	Errors        int64  `json:"errors"` // status >= 500
	AvgDurationNS int64  `json:"avg_duration_ns"`
}

// Store collects request events and answers aggregate queries.
type Store interface {
	// Record buffers an event; non-blocking, best-effort.
	Record(event Event)

	// Flush forces buffered events to storage.
	Flush(ctx context.Context) error

	// ModuleSummaries returns per-module aggregates over all events.
	ModuleSummaries(ctx context.Context) ([]ModuleSummary, error)

	// Close flushes and releases the store.
	Close() error
}
