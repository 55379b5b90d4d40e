package driven

import "context"

// EmbeddingBackend generates vector embeddings from text.
// One provider behind the backend manager; the manager owns priority
// ordering, retries, fallback, and concurrency limits.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Deterministic mock vectors for tests and offline operation
type EmbeddingBackend interface {
	// Name identifies the backend in configuration and stats.
	Name() string

	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one
	// request. Callers must respect the backend's batch size; the
	// manager splits oversized batches.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 384, 768, 1536).
	// Vectors compared under one query must share this dimension.
	Dimensions() int

	// ModelName returns the embedding model identifier.
	ModelName() string

	// Ping validates the backend is reachable with a lightweight
	// request. Used at startup before committing to a search mode.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// BackendStats reports per-backend call outcomes for health checks.
type BackendStats struct {
	// Name identifies the backend.
	Name string

	// Successes counts completed embedding calls.
	Successes uint64

	// Failures counts calls that failed after exhausting retries.
	Failures uint64
}
