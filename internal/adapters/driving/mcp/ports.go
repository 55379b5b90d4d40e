package mcp

import (
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
)

// Ports aggregates all port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides search capabilities.
	Search driving.SearchService

	// Status reports component health.
	Status driving.StatusReporter

	// Ingestor indexes documents on demand.
	Ingestor driving.Ingestor

	// Documents backs the document resources.
	Documents driven.DocumentStore
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Status, Ingestor, and Documents degrade gracefully when absent.
	return nil
}
