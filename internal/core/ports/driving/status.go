package driving

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/ports/driven"
)

// StatusReport aggregates component health for CLI and MCP surfaces.
type StatusReport struct {
	// Documents is the count of indexed documents.
	Documents int

	// Chunks is the count of indexed chunks.
	Chunks int

	// Backends reports per-backend embedding call outcomes.
	Backends []driven.BackendStats

	// BackendHealth maps backend name to reachability; empty string
	// means healthy, otherwise the ping error text.
	BackendHealth map[string]string

	// Cache reports result cache effectiveness.
	Cache driven.CacheStats

	// Watcher is the watcher snapshot, nil when no watcher runs.
	Watcher *WatcherStatus
}

// StatusReporter exposes the aggregated health surface.
type StatusReporter interface {
	// Status collects a point-in-time report across components.
	Status(ctx context.Context) (*StatusReport, error)
}
