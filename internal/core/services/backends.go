package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/logger"
)

// MockBackendName is the backend name reserved for the deterministic
// offline provider. In mock mode every other backend is ignored.
const MockBackendName = "mock"

// EmbeddedBy identifies the backend and model that produced a batch
// of vectors. Vectors are only comparable under the model that made
// them, so callers persist both alongside the embedding.
type EmbeddedBy struct {
	Backend string
	Model   string
}

// Embedder is the slice of the backend manager that the search and
// ingestion services depend on.
type Embedder interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for texts and reports which
	// backend and model served the request. A non-empty modelHint
	// prefers the backend serving that model before falling back to
	// priority order.
	EmbedBatch(ctx context.Context, texts []string, modelHint string) ([][]float32, EmbeddedBy, error)
}

// Ensure BackendManager implements the interface.
var _ Embedder = (*BackendManager)(nil)

// managedBackend pairs a backend with its limits and counters.
type managedBackend struct {
	backend   driven.EmbeddingBackend
	cfg       domain.BackendConfig
	sem       *semaphore.Weighted
	successes atomic.Uint64
	failures  atomic.Uint64
}

// BackendManager selects among configured embedding backends.
//
// Backends are tried in priority order. Transient failures are retried
// with exponential backoff up to the backend's retry budget; when the
// budget is exhausted and fallback is allowed, the next enabled backend
// is tried. Validation failures are surfaced immediately and never
// retried or fallen through.
type BackendManager struct {
	backends      []*managedBackend
	allowFallback bool
}

// NewBackendManager creates a backend manager from configuration and
// the instantiated backends. Backends are matched to configuration
// entries by name; enabled entries without an instance are an error.
// In mock mode only the mock backend is retained.
func NewBackendManager(cfg domain.EmbeddingConfig, backends []driven.EmbeddingBackend) (*BackendManager, error) {
	byName := make(map[string]driven.EmbeddingBackend, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}

	if cfg.MockMode {
		mock, ok := byName[MockBackendName]
		if !ok {
			return nil, fmt.Errorf("%w: mock mode enabled but no mock backend provided", domain.ErrInvalidInput)
		}
		logger.Info("Embedding in mock mode: network backends disabled")
		return &BackendManager{
			backends: []*managedBackend{{
				backend: mock,
				cfg:     domain.BackendConfig{Name: MockBackendName, Enabled: true},
			}},
		}, nil
	}

	managed := make([]*managedBackend, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		if !bc.Enabled {
			continue
		}
		backend, ok := byName[bc.Name]
		if !ok {
			return nil, fmt.Errorf("%w: backend %q enabled but not instantiated", domain.ErrInvalidInput, bc.Name)
		}
		mb := &managedBackend{backend: backend, cfg: bc}
		if bc.MaxConcurrentRequests > 0 {
			mb.sem = semaphore.NewWeighted(int64(bc.MaxConcurrentRequests))
		}
		managed = append(managed, mb)
	}

	if len(managed) == 0 {
		return nil, fmt.Errorf("%w: no embedding backend enabled", domain.ErrInvalidInput)
	}

	sort.SliceStable(managed, func(i, j int) bool {
		return managed[i].cfg.Priority < managed[j].cfg.Priority
	})

	return &BackendManager{
		backends:      managed,
		allowFallback: cfg.AllowFallback,
	}, nil
}

// Embed generates a vector for a single text.
func (m *BackendManager) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, _, err := m.EmbedBatch(ctx, []string{text}, "")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates vectors for texts, falling through the
// priority-ordered backends on exhausted retries.
func (m *BackendManager) EmbedBatch(ctx context.Context, texts []string, modelHint string) ([][]float32, EmbeddedBy, error) {
	if len(texts) == 0 {
		return nil, EmbeddedBy{}, nil
	}

	ordered := m.ordered(modelHint)
	var lastErr error

	for _, mb := range ordered {
		vectors, err := m.embedWith(ctx, mb, texts)
		if err == nil {
			mb.successes.Add(1)
			return vectors, EmbeddedBy{
				Backend: mb.backend.Name(),
				Model:   mb.backend.ModelName(),
			}, nil
		}
		mb.failures.Add(1)
		lastErr = err

		// Context ends and validation failures stop the cascade:
		// another backend cannot fix a bad request.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, EmbeddedBy{}, err
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, EmbeddedBy{}, err
		}
		if !m.allowFallback {
			break
		}
		logger.Warn("Backend %s exhausted (%v), trying next", mb.backend.Name(), err)
	}

	return nil, EmbeddedBy{}, fmt.Errorf("%w: %w", domain.ErrBackendExhausted, lastErr)
}

// Dimensions returns the vector size of the primary backend.
func (m *BackendManager) Dimensions() int {
	return m.backends[0].backend.Dimensions()
}

// Stats reports per-backend call outcomes in priority order.
func (m *BackendManager) Stats() []driven.BackendStats {
	stats := make([]driven.BackendStats, len(m.backends))
	for i, mb := range m.backends {
		stats[i] = driven.BackendStats{
			Name:      mb.backend.Name(),
			Successes: mb.successes.Load(),
			Failures:  mb.failures.Load(),
		}
	}
	return stats
}

// Ping checks reachability of every managed backend. The result maps
// backend name to its ping error, nil for healthy.
func (m *BackendManager) Ping(ctx context.Context) map[string]error {
	health := make(map[string]error, len(m.backends))
	for _, mb := range m.backends {
		health[mb.backend.Name()] = mb.backend.Ping(ctx)
	}
	return health
}

// Close releases all backend resources.
func (m *BackendManager) Close() error {
	var firstErr error
	for _, mb := range m.backends {
		if err := mb.backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ordered returns the backends to try, preferring a model-hint match.
func (m *BackendManager) ordered(modelHint string) []*managedBackend {
	if modelHint == "" {
		return m.backends
	}

	ordered := make([]*managedBackend, 0, len(m.backends))
	for _, mb := range m.backends {
		if mb.backend.ModelName() == modelHint || mb.cfg.Model == modelHint {
			ordered = append(ordered, mb)
		}
	}
	for _, mb := range m.backends {
		if mb.backend.ModelName() != modelHint && mb.cfg.Model != modelHint {
			ordered = append(ordered, mb)
		}
	}
	return ordered
}

// embedWith runs texts through one backend, splitting into sub-batches
// of the backend's batch size.
func (m *BackendManager) embedWith(ctx context.Context, mb *managedBackend, texts []string) ([][]float32, error) {
	batchSize := mb.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := m.embedSubBatch(ctx, mb, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedSubBatch sends one request with retries, bounded by the
// backend's concurrency limit.
func (m *BackendManager) embedSubBatch(ctx context.Context, mb *managedBackend, batch []string) ([][]float32, error) {
	if mb.sem != nil {
		if err := mb.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer mb.sem.Release(1)
	}

	policy := backoff.NewExponentialBackOff()
	if mb.cfg.RetryDelay > 0 {
		policy.InitialInterval = mb.cfg.RetryDelay
	}
	retries := uint64(0)
	if mb.cfg.MaxRetries > 0 {
		retries = uint64(mb.cfg.MaxRetries)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)

	op := func() ([][]float32, error) {
		vectors, err := mb.backend.EmbedBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if err := validateVectors(mb, len(batch), vectors); err != nil {
			return nil, backoff.Permanent(err)
		}
		return vectors, nil
	}

	return backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		logger.Debug("Backend %s retry in %s: %v", mb.backend.Name(), wait, err)
	})
}

// validateVectors rejects malformed backend responses before they can
// reach the index.
func validateVectors(mb *managedBackend, want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: backend %s returned %d vectors for %d texts",
			domain.ErrInvalidInput, mb.backend.Name(), len(vectors), want)
	}
	dims := mb.backend.Dimensions()
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: backend %s returned an empty vector at %d",
				domain.ErrInvalidInput, mb.backend.Name(), i)
		}
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("%w: backend %s returned %d dimensions, expected %d",
				domain.ErrInvalidInput, mb.backend.Name(), len(v), dims)
		}
	}
	return nil
}
