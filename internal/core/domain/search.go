package domain

const unknownDescription = "Unknown"

// SearchMode defines how search operations combine retrieval methods.
type SearchMode string

// Available search modes.
const (
	// SearchModeSemantic uses only vector similarity search.
	SearchModeSemantic SearchMode = "semantic"

	// SearchModeKeyword uses only BM25 keyword search.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModeHybrid fuses semantic and keyword results.
	SearchModeHybrid SearchMode = "hybrid"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeSemantic, SearchModeKeyword, SearchModeHybrid:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if this mode needs an embedding backend.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeSemantic || m == SearchModeHybrid
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeSemantic:
		return "Semantic (vector similarity)"
	case SearchModeKeyword:
		return "Keyword (BM25)"
	case SearchModeHybrid:
		return "Hybrid (semantic + keyword fusion)"
	default:
		return unknownDescription
	}
}

// SearchFilters restricts search results by document attributes.
type SearchFilters struct {
	// Language filters to a programming or natural language.
	Language string

	// ContentType filters to a content type (code, text, markdown).
	ContentType ContentType
}

// IsZero returns true when no filter is set.
func (f SearchFilters) IsZero() bool {
	return f.Language == "" && f.ContentType == ""
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Mode selects the retrieval strategy. Defaults to hybrid.
	Mode SearchMode

	// Limit is the maximum number of results.
	Limit int

	// Filters restricts results by document attributes.
	Filters SearchFilters

	// MinSimilarity excludes semantic hits scoring below this
	// threshold. Callers choose the threshold per query; there is
	// no hidden global default.
	MinSimilarity float64

	// Caller identifies the requester for rate limiting.
	Caller string

	// BypassCache skips the result cache for this query.
	BypassCache bool
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the owning document.
	DocumentID string

	// SourcePath is the document's filesystem location.
	SourcePath string

	// Snippet is a short excerpt around the matched content.
	Snippet string

	// Score is the relevance score. For hybrid mode this is the
	// fused score; ordering is descending with ties broken by
	// ChunkID for determinism.
	Score float64

	// Mode records which retrieval leg produced the hit
	// (semantic, keyword, or hybrid for fused results).
	Mode SearchMode
}
