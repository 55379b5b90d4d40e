package driven

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
)

// Chunker splits document content into token-bounded chunks.
type Chunker interface {
	// Name returns the chunker name for logging and configuration.
	Name() string

	// Chunk splits the document into ordered chunks whose token
	// counts lie within the configured bounds, except possibly the
	// final chunk which may be shorter. Adjacent chunks share a
	// deterministic overlap.
	Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
