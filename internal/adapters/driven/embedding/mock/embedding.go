// Package mock provides a deterministic offline embedding backend.
//
// Vectors are derived from an FNV hash of the text, so the same text
// always produces the same unit vector. No network is involved, which
// makes this the backend for tests and mock mode.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/ferret-search/ferret/internal/core/ports/driven"
)

// Ensure Backend implements the interface.
var _ driven.EmbeddingBackend = (*Backend)(nil)

// BackendName identifies this backend in configuration and stats.
const BackendName = "mock"

// DefaultDimensions is the vector size when none is configured.
const DefaultDimensions = 384

// Backend generates deterministic embeddings without any network.
type Backend struct {
	dimensions int
}

// New creates a mock backend producing vectors of the given size.
func New(dimensions int) *Backend {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Backend{dimensions: dimensions}
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return BackendName
}

// Embed generates a deterministic embedding from the text hash.
func (b *Backend) Embed(_ context.Context, text string) ([]float32, error) {
	return deterministicVector(text, b.dimensions), nil
}

// EmbedBatch generates deterministic embeddings for each text.
func (b *Backend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = deterministicVector(text, b.dimensions)
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (b *Backend) Dimensions() int {
	return b.dimensions
}

// ModelName returns the model identifier.
func (b *Backend) ModelName() string {
	return "deterministic-fnv"
}

// Ping always succeeds; there is nothing to reach.
func (b *Backend) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (b *Backend) Close() error {
	return nil
}

// deterministicVector creates a unit vector from an FNV hash of the
// text, expanded with an LCG so every dimension differs.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/500.0 - 1.0
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
