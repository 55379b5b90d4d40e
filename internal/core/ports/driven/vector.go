package driven

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
)

// VectorIndex provides semantic similarity search operations.
// Vectors live alongside chunk metadata in the relational store.
type VectorIndex interface {
	// Add inserts or replaces the vector for the given chunk ID.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k nearest neighbours to the query vector by
	// cosine similarity. Candidates with a zero-norm vector yield an
	// undefined similarity and are excluded, never returned.
	Search(ctx context.Context, query []float32, k int, filters domain.SearchFilters) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}
