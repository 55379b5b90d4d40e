package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
)

func searchConfig() domain.SearchConfig {
	return domain.SearchConfig{
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		RatePerMinute:  6000,
		MaxConcurrent:  8,
		AcquireTimeout: time.Second,
	}
}

func cacheConfig() domain.CacheConfig {
	return domain.CacheConfig{
		Enabled:     true,
		SemanticTTL: time.Hour,
		KeywordTTL:  10 * time.Minute,
		HybridTTL:   30 * time.Minute,
	}
}

// newSearchFixture seeds a store with three chunks across two
// documents and wires a search service around scriptable indexes.
func newSearchFixture() (*SearchService, *mockDocStore, *mockSearchEngine, *mockVectorIndex, *mockCache) {
	store := newMockDocStore()
	store.addDocument("doc-1", "/src/main.go",
		[]string{"chunk-1", "chunk-2"},
		[]string{"func main() { run() }", "func run() error { return nil }"})
	store.addDocument("doc-2", "/docs/readme.md",
		[]string{"chunk-3"},
		[]string{"Getting started with the indexer."})

	engine := &mockSearchEngine{}
	vectors := &mockVectorIndex{}
	cache := newMockCache()
	embedder := &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}}

	svc := NewSearchService(store, engine, vectors, embedder, cache, searchConfig(), cacheConfig())
	return svc, store, engine, vectors, cache
}

func TestSearchService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query returns no results", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()

		results, err := svc.Search(ctx, "  \t ", domain.SearchOptions{})

		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Empty(t, engine.hits)
	})

	t.Run("unknown mode is invalid input", func(t *testing.T) {
		svc, _, _, _, _ := newSearchFixture()

		_, err := svc.Search(ctx, "run", domain.SearchOptions{Mode: "regex"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("keyword mode returns hydrated results", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{
			{ChunkID: "chunk-2", Score: 4.2},
			{ChunkID: "chunk-1", Score: 2.1},
		}

		results, err := svc.Search(ctx, "run", domain.SearchOptions{Mode: domain.SearchModeKeyword})

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk-2", results[0].ChunkID)
		assert.Equal(t, "/src/main.go", results[0].SourcePath)
		assert.Equal(t, domain.SearchModeKeyword, results[0].Mode)
		assert.Contains(t, results[0].Snippet, "run")
	})

	t.Run("keyword score ties rank fresher documents first", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{
			{ChunkID: "chunk-1", Score: 3.0, LastModified: time.Now().Add(-24 * time.Hour)},
			{ChunkID: "chunk-2", Score: 3.0, LastModified: time.Now()},
		}

		results, err := svc.Search(ctx, "run", domain.SearchOptions{Mode: domain.SearchModeKeyword})

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk-2", results[0].ChunkID)
	})

	t.Run("semantic mode honours the similarity threshold", func(t *testing.T) {
		svc, _, _, vectors, _ := newSearchFixture()
		vectors.hits = []driven.VectorHit{
			{ChunkID: "chunk-1", Similarity: 0.91},
			{ChunkID: "chunk-3", Similarity: 0.42},
		}

		results, err := svc.Search(ctx, "entry point", domain.SearchOptions{
			Mode:          domain.SearchModeSemantic,
			MinSimilarity: 0.5,
		})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-1", results[0].ChunkID)
	})

	t.Run("semantic mode without an embedder is invalid", func(t *testing.T) {
		store := newMockDocStore()
		svc := NewSearchService(store, &mockSearchEngine{}, &mockVectorIndex{}, nil, nil, searchConfig(), cacheConfig())

		_, err := svc.Search(ctx, "run", domain.SearchOptions{Mode: domain.SearchModeSemantic})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("hybrid fuses both legs with semantic dominance", func(t *testing.T) {
		svc, _, engine, vectors, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-3", Score: 5.0}}
		vectors.hits = []driven.VectorHit{{ChunkID: "chunk-1", Similarity: 0.9}}

		results, err := svc.Search(ctx, "indexer", domain.SearchOptions{Mode: domain.SearchModeHybrid})

		require.NoError(t, err)
		require.Len(t, results, 2)
		// Both legs normalise to 1.0 at their top hit, so the
		// semantic winner carries weight 0.7 against 0.3.
		assert.Equal(t, "chunk-1", results[0].ChunkID)
		assert.InDelta(t, 0.7, results[0].Score, 0.001)
		assert.Equal(t, "chunk-3", results[1].ChunkID)
		assert.InDelta(t, 0.3, results[1].Score, 0.001)
	})

	t.Run("a chunk matched by both legs sums its weights", func(t *testing.T) {
		svc, _, engine, vectors, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 5.0}}
		vectors.hits = []driven.VectorHit{{ChunkID: "chunk-1", Similarity: 0.9}}

		results, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeHybrid})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Score, 0.001)
	})

	t.Run("equal scores break ties by chunk ID", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{
			{ChunkID: "chunk-2", Score: 3.0},
			{ChunkID: "chunk-1", Score: 3.0},
		}

		results, err := svc.Search(ctx, "func", domain.SearchOptions{Mode: domain.SearchModeKeyword})

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk-1", results[0].ChunkID)
		assert.Equal(t, "chunk-2", results[1].ChunkID)
	})

	t.Run("hybrid degrades to keyword when the semantic leg fails", func(t *testing.T) {
		svc, _, engine, vectors, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 2.0}}
		vectors.err = errors.New("index corrupted")

		results, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeHybrid})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-1", results[0].ChunkID)
	})

	t.Run("hybrid fails when both legs fail", func(t *testing.T) {
		svc, _, engine, vectors, _ := newSearchFixture()
		engine.err = errors.New("fts unavailable")
		vectors.err = errors.New("index corrupted")

		_, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeHybrid})

		require.Error(t, err)
	})

	t.Run("deleted chunks are skipped during hydration", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{
			{ChunkID: "chunk-gone", Score: 9.9},
			{ChunkID: "chunk-1", Score: 1.0},
		}

		results, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeKeyword})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-1", results[0].ChunkID)
	})

	t.Run("limit truncates results", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{
			{ChunkID: "chunk-1", Score: 3.0},
			{ChunkID: "chunk-2", Score: 2.0},
			{ChunkID: "chunk-3", Score: 1.0},
		}

		results, err := svc.Search(ctx, "func", domain.SearchOptions{
			Mode:  domain.SearchModeKeyword,
			Limit: 2,
		})

		require.NoError(t, err)
		assert.Len(t, results, 2)
	})
}

func TestSearchService_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated query is served from cache", func(t *testing.T) {
		svc, _, engine, _, cache := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 2.0}}

		first, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.NoError(t, err)

		engine.err = errors.New("fts offline now")
		second, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeKeyword})

		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("query normalisation shares cache entries", func(t *testing.T) {
		svc, _, engine, _, cache := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 2.0}}

		_, err := svc.Search(ctx, "Main  Run", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.NoError(t, err)
		_, err = svc.Search(ctx, "  main run\t", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.NoError(t, err)

		assert.Equal(t, 1, cache.sets)
	})

	t.Run("cached entries carry the mode TTL", func(t *testing.T) {
		svc, _, engine, _, cache := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 2.0}}

		_, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.NoError(t, err)

		for _, ttl := range cache.ttls {
			assert.Equal(t, 10*time.Minute, ttl)
		}
	})

	t.Run("bypass skips the cached entry", func(t *testing.T) {
		svc, _, engine, _, _ := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 2.0}}

		_, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.NoError(t, err)

		engine.hits = []driven.SearchHit{{ChunkID: "chunk-2", Score: 2.0}}
		results, err := svc.Search(ctx, "main", domain.SearchOptions{
			Mode:        domain.SearchModeKeyword,
			BypassCache: true,
		})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-2", results[0].ChunkID)
	})

	t.Run("a cache outage never fails the search", func(t *testing.T) {
		svc, _, engine, _, cache := newSearchFixture()
		engine.hits = []driven.SearchHit{{ChunkID: "chunk-1", Score: 2.0}}
		cache.down = true

		results, err := svc.Search(ctx, "main", domain.SearchOptions{Mode: domain.SearchModeKeyword})

		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestSearchService_AdmissionControl(t *testing.T) {
	ctx := context.Background()

	t.Run("requests beyond the rate ceiling fail fast", func(t *testing.T) {
		store := newMockDocStore()
		engine := &mockSearchEngine{}
		cfg := searchConfig()
		cfg.RatePerMinute = 1 // burst of one
		svc := NewSearchService(store, engine, nil, nil, nil, cfg, cacheConfig())

		_, err := svc.Search(ctx, "first", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.NoError(t, err)

		_, err = svc.Search(ctx, "second", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("callers are limited independently", func(t *testing.T) {
		store := newMockDocStore()
		engine := &mockSearchEngine{}
		cfg := searchConfig()
		cfg.RatePerMinute = 1
		svc := NewSearchService(store, engine, nil, nil, nil, cfg, cacheConfig())

		_, err := svc.Search(ctx, "q", domain.SearchOptions{Mode: domain.SearchModeKeyword, Caller: "cli"})
		require.NoError(t, err)

		_, err = svc.Search(ctx, "q", domain.SearchOptions{Mode: domain.SearchModeKeyword, Caller: "mcp"})
		require.NoError(t, err)
	})

	t.Run("a full pool fails with a capacity error", func(t *testing.T) {
		store := newMockDocStore()
		engine := &mockSearchEngine{block: make(chan struct{})}
		cfg := searchConfig()
		cfg.MaxConcurrent = 1
		cfg.AcquireTimeout = 20 * time.Millisecond
		svc := NewSearchService(store, engine, nil, nil, nil, cfg, cacheConfig())

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Search(ctx, "blocked", domain.SearchOptions{Mode: domain.SearchModeKeyword})
		}()

		// Give the first search time to claim the only slot.
		time.Sleep(10 * time.Millisecond)

		_, err := svc.Search(ctx, "rejected", domain.SearchOptions{
			Mode:        domain.SearchModeKeyword,
			BypassCache: true,
		})
		assert.ErrorIs(t, err, domain.ErrCapacity)

		close(engine.block)
		wg.Wait()
	})
}
