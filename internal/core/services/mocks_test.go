package services

import (
	"context"
	"sync"
	"time"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
)

// mockBackend is a scriptable embedding backend.
type mockBackend struct {
	name    string
	model   string
	dims    int
	pingErr error

	mu       sync.Mutex
	failures int   // fail this many calls before succeeding
	failWith error // error returned while failing
	batches  [][]string
	closed   bool
	badDims  int // when > 0, return vectors of this size instead
	badCount bool
}

func newMockBackend(name string, dims int) *mockBackend {
	return &mockBackend{name: name, model: name + "-model", dims: dims}
}

func (b *mockBackend) Name() string      { return b.name }
func (b *mockBackend) ModelName() string { return b.model }
func (b *mockBackend) Dimensions() int   { return b.dims }

func (b *mockBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (b *mockBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batches = append(b.batches, texts)
	if b.failures > 0 {
		b.failures--
		return nil, b.failWith
	}

	dims := b.dims
	if b.badDims > 0 {
		dims = b.badDims
	}
	count := len(texts)
	if b.badCount {
		count--
	}
	vectors := make([][]float32, count)
	for i := range vectors {
		vectors[i] = make([]float32, dims)
		for j := range vectors[i] {
			vectors[i][j] = 0.1
		}
	}
	return vectors, nil
}

func (b *mockBackend) Ping(context.Context) error { return b.pingErr }

func (b *mockBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *mockBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

// mockEmbedder is a scriptable Embedder for search and ingest tests.
type mockEmbedder struct {
	vector  []float32
	backend string
	model   string
	err     error

	mu    sync.Mutex
	calls int
}

func (e *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, _, err := e.EmbedBatch(ctx, []string{text}, "")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *mockEmbedder) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, EmbeddedBy, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.err != nil {
		return nil, EmbeddedBy{}, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = e.vector
	}
	by := EmbeddedBy{Backend: e.backend, Model: e.model}
	if by.Backend == "" {
		by.Backend = "mock"
	}
	if by.Model == "" {
		by.Model = "mock-model"
	}
	return vectors, by, nil
}

// mockDocStore is an in-memory document store.
type mockDocStore struct {
	mu     sync.Mutex
	docs   map[string]*domain.Document // by ID
	chunks map[string][]domain.Chunk   // by document ID

	replaceCalls int
	failGet      error
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (s *mockDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *mockDocStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	s.chunks[documentID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (s *mockDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *mockDocStore) GetDocumentByPath(_ context.Context, sourcePath string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.docs {
		if doc.SourcePath == sourcePath {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *mockDocStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Chunk(nil), s.chunks[documentID]...), nil
}

func (s *mockDocStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			if c.ID == id {
				copied := c
				return &copied, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (s *mockDocStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *mockDocStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, *doc)
	}
	return docs, nil
}

// addDocument seeds a document with one chunk per content string.
func (s *mockDocStore) addDocument(id, path string, chunkIDs []string, contents []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = &domain.Document{ID: id, SourcePath: path}
	chunks := make([]domain.Chunk, len(chunkIDs))
	for i, cid := range chunkIDs {
		chunks[i] = domain.Chunk{ID: cid, DocumentID: id, Content: contents[i], Position: i}
	}
	s.chunks[id] = chunks
}

// mockSearchEngine is a scriptable keyword index.
type mockSearchEngine struct {
	mu      sync.Mutex
	hits    []driven.SearchHit
	err     error
	indexed []string
	deleted []string
	block   chan struct{} // when set, Search waits for close
}

func (e *mockSearchEngine) Index(_ context.Context, chunk domain.Chunk) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indexed = append(e.indexed, chunk.ID)
	return nil
}

func (e *mockSearchEngine) Delete(_ context.Context, chunkID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, chunkID)
	return nil
}

func (e *mockSearchEngine) Search(_ context.Context, _ string, _ int, _ domain.SearchFilters) ([]driven.SearchHit, error) {
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return append([]driven.SearchHit(nil), e.hits...), nil
}

func (e *mockSearchEngine) Close() error { return nil }

// mockVectorIndex is a scriptable vector index.
type mockVectorIndex struct {
	mu      sync.Mutex
	hits    []driven.VectorHit
	err     error
	added   []string
	deleted []string
}

func (v *mockVectorIndex) Add(_ context.Context, chunkID string, _ []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.added = append(v.added, chunkID)
	return nil
}

func (v *mockVectorIndex) Delete(_ context.Context, chunkID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleted = append(v.deleted, chunkID)
	return nil
}

func (v *mockVectorIndex) Search(_ context.Context, _ []float32, _ int, _ domain.SearchFilters) ([]driven.VectorHit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return append([]driven.VectorHit(nil), v.hits...), nil
}

func (v *mockVectorIndex) Close() error { return nil }

// mockCache is an in-memory result cache without expiry.
type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	gets    int
	sets    int
	down    bool // simulate an outage: all gets miss, sets are dropped
}

func newMockCache() *mockCache {
	return &mockCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.down {
		return nil, false
	}
	payload, ok := c.entries[key]
	return payload, ok
}

func (c *mockCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.down {
		return
	}
	c.entries[key] = payload
	c.ttls[key] = ttl
}

func (c *mockCache) Stats() driven.CacheStats { return driven.CacheStats{Entries: len(c.entries)} }
func (c *mockCache) Close() error             { return nil }
