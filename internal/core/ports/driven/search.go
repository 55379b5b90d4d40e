package driven

import (
	"context"
	"time"

	"github.com/ferret-search/ferret/internal/core/domain"
)

// SearchEngine provides full-text keyword search operations.
// Backed by SQLite FTS5 for BM25 scoring.
type SearchEngine interface {
	// Index adds or updates a chunk in the search index.
	Index(ctx context.Context, chunk domain.Chunk) error

	// Delete removes a chunk from the search index.
	Delete(ctx context.Context, chunkID string) error

	// Search performs a keyword search and returns matching chunk
	// IDs with BM25 scores, filtered by document attributes.
	Search(ctx context.Context, query string, limit int, filters domain.SearchFilters) ([]SearchHit, error)

	// Close releases resources.
	Close() error
}

// SearchHit represents a keyword search result.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the BM25 relevance score.
	Score float64

	// LastModified is the parent document's modification time.
	// Equal scores rank fresher documents first.
	LastModified time.Time
}
