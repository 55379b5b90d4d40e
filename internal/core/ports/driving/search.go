package driving

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search executes a query in the requested mode and returns
	// ranked results. Requests beyond the rate limit fail fast with
	// domain.ErrRateLimited; requests that cannot acquire pool
	// capacity within the timeout fail with domain.ErrCapacity.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
