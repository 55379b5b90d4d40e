package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
	"github.com/ferret-search/ferret/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// defaultLimit applies when the caller does not set one.
const defaultLimit = 20

// anonymousCaller buckets unidentified requesters for rate limiting.
const anonymousCaller = "anonymous"

// scoredChunk holds intermediate results before hydration.
type scoredChunk struct {
	chunkID      string
	score        float64
	lastModified time.Time
}

// SearchService coordinates semantic, keyword, and hybrid search.
//
// Every query passes the per-caller rate limiter and the global
// concurrency pool before any retrieval work happens. Results are
// cached per mode; a failing cache only costs latency.
type SearchService struct {
	docStore    driven.DocumentStore
	searchIndex driven.SearchEngine
	vectorIndex driven.VectorIndex
	embedder    Embedder
	cache       driven.ResultCache

	cfg      domain.SearchConfig
	cacheCfg domain.CacheConfig

	pool *semaphore.Weighted

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewSearchService creates a search service. The embedder and cache
// are optional; without an embedder, semantic retrieval is
// unavailable and hybrid degrades to keyword only.
func NewSearchService(
	docStore driven.DocumentStore,
	searchIndex driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embedder Embedder,
	cache driven.ResultCache,
	cfg domain.SearchConfig,
	cacheCfg domain.CacheConfig,
) *SearchService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &SearchService{
		docStore:    docStore,
		searchIndex: searchIndex,
		vectorIndex: vectorIndex,
		embedder:    embedder,
		cache:       cache,
		cfg:         cfg,
		cacheCfg:    cacheCfg,
		pool:        semaphore.NewWeighted(int64(maxConcurrent)),
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Search executes a query in the requested mode.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")

	query = normaliseQuery(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	mode := opts.Mode
	if mode == "" {
		mode = domain.SearchModeHybrid
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidInput, opts.Mode)
	}
	if mode == domain.SearchModeSemantic && s.embedder == nil {
		return nil, fmt.Errorf("%w: semantic search requires an embedding backend", domain.ErrInvalidInput)
	}

	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	logger.Debug("Query: %q, mode: %s, limit: %d", query, mode, opts.Limit)

	// Admission control happens before any retrieval work. Requests
	// beyond the rate ceiling fail fast rather than queue.
	if !s.limiter(opts.Caller).Allow() {
		logger.Warn("Caller %q over rate limit", callerKey(opts.Caller))
		return nil, domain.ErrRateLimited
	}

	release, err := s.acquirePool(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	key := s.cacheKey(query, mode, opts)
	if s.cache != nil && !opts.BypassCache {
		if results, ok := s.cachedResults(ctx, key); ok {
			logger.Debug("Cache hit for %s query", mode)
			return results, nil
		}
	}

	results, err := s.execute(ctx, query, mode, opts)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.storeResults(ctx, key, mode, results)
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

// execute runs the retrieval legs for the chosen mode and hydrates
// the winners.
func (s *SearchService) execute(
	ctx context.Context, query string, mode domain.SearchMode, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	// Request more results internally so post-hydration drops
	// (deleted chunks) still fill the page.
	internalLimit := opts.Limit * 2

	var chunks []scoredChunk
	var err error

	switch mode {
	case domain.SearchModeKeyword:
		chunks, err = s.keywordSearch(ctx, query, internalLimit, opts.Filters)
	case domain.SearchModeSemantic:
		chunks, err = s.semanticSearch(ctx, query, internalLimit, opts)
	default:
		chunks, err = s.hybridSearch(ctx, query, internalLimit, opts)
	}
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	sortScored(chunks)
	if len(chunks) > internalLimit {
		chunks = chunks[:internalLimit]
	}

	results, err := s.hydrateResults(ctx, chunks, query, mode)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// keywordSearch performs BM25 full-text retrieval.
func (s *SearchService) keywordSearch(
	ctx context.Context, query string, limit int, filters domain.SearchFilters,
) ([]scoredChunk, error) {
	if s.searchIndex == nil {
		return nil, errors.New("search engine unavailable")
	}

	hits, err := s.searchIndex.Search(ctx, query, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{
			chunkID:      hit.ChunkID,
			score:        hit.Score,
			lastModified: hit.LastModified,
		}
	}
	return results, nil
}

// semanticSearch embeds the query and retrieves nearest neighbours.
// Hits below the caller's similarity threshold are excluded.
func (s *SearchService) semanticSearch(
	ctx context.Context, query string, limit int, opts domain.SearchOptions,
) ([]scoredChunk, error) {
	if s.vectorIndex == nil {
		return nil, errors.New("vector index unavailable")
	}
	if s.embedder == nil {
		return nil, errors.New("embedding backend unavailable")
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectorIndex.Search(ctx, embedding, limit, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Semantic search: %d hits", len(hits))

	results := make([]scoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < opts.MinSimilarity {
			continue
		}
		results = append(results, scoredChunk{chunkID: hit.ChunkID, score: hit.Similarity})
	}
	return results, nil
}

// hybridSearch runs both legs in parallel and fuses their rankings.
// One failing leg degrades to the other's results; both failing is an
// error.
func (s *SearchService) hybridSearch(
	ctx context.Context, query string, limit int, opts domain.SearchOptions,
) ([]scoredChunk, error) {
	var keywordResults, semanticResults []scoredChunk
	var keywordErr, semanticErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		keywordResults, keywordErr = s.keywordSearch(ctx, query, limit, opts.Filters)
	}()

	go func() {
		defer wg.Done()
		semanticResults, semanticErr = s.semanticSearch(ctx, query, limit, opts)
	}()

	wg.Wait()

	if keywordErr != nil && semanticErr != nil {
		return nil, fmt.Errorf("hybrid search: keyword=%w, semantic=%w", keywordErr, semanticErr)
	}
	if semanticErr != nil {
		logger.Warn("Hybrid search: semantic leg failed (%v), keyword results only", semanticErr)
		return keywordResults, nil
	}
	if keywordErr != nil {
		logger.Warn("Hybrid search: keyword leg failed (%v), semantic results only", keywordErr)
		return semanticResults, nil
	}

	logger.Debug("Hybrid search: fusing %d semantic + %d keyword results",
		len(semanticResults), len(keywordResults))
	return s.fuse(semanticResults, keywordResults), nil
}

// fuse merges the two rankings by weighted sum of normalised scores.
// Each leg's scores are scaled to [0, 1] against its own maximum so
// BM25 and cosine magnitudes are comparable, then combined with the
// configured weights (normalised to sum to one).
func (s *SearchService) fuse(semanticResults, keywordResults []scoredChunk) []scoredChunk {
	wSem, wKey := s.cfg.SemanticWeight, s.cfg.KeywordWeight
	if total := wSem + wKey; total > 0 {
		wSem /= total
		wKey /= total
	} else {
		wSem, wKey = 0.7, 0.3
	}

	scores := make(map[string]float64)
	for id, norm := range normaliseScores(semanticResults) {
		scores[id] += wSem * norm
	}
	for id, norm := range normaliseScores(keywordResults) {
		scores[id] += wKey * norm
	}

	merged := make([]scoredChunk, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, scoredChunk{chunkID: id, score: score})
	}
	sortScored(merged)
	return merged
}

// normaliseScores scales a leg's scores to [0, 1] by its maximum.
func normaliseScores(chunks []scoredChunk) map[string]float64 {
	if len(chunks) == 0 {
		return nil
	}
	maxScore := chunks[0].score
	for _, c := range chunks[1:] {
		if c.score > maxScore {
			maxScore = c.score
		}
	}
	norm := make(map[string]float64, len(chunks))
	for _, c := range chunks {
		if maxScore > 0 {
			norm[c.chunkID] = c.score / maxScore
		} else {
			norm[c.chunkID] = 0
		}
	}
	return norm
}

// sortScored orders by descending score. Score ties go to the more
// recently modified document, then by chunk ID so identical queries
// return identical orderings.
func sortScored(chunks []scoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].score != chunks[j].score {
			return chunks[i].score > chunks[j].score
		}
		if !chunks[i].lastModified.Equal(chunks[j].lastModified) {
			return chunks[i].lastModified.After(chunks[j].lastModified)
		}
		return chunks[i].chunkID < chunks[j].chunkID
	})
}

// hydrateResults converts chunk IDs to full results. Chunks or
// documents deleted since indexing are skipped, not errors.
func (s *SearchService) hydrateResults(
	ctx context.Context, chunks []scoredChunk, query string, mode domain.SearchMode,
) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(chunks))

	for _, sc := range chunks {
		chunk, err := s.docStore.GetChunk(ctx, sc.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", sc.chunkID, err)
		}

		doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
		}

		results = append(results, domain.SearchResult{
			ChunkID:    chunk.ID,
			DocumentID: doc.ID,
			SourcePath: doc.SourcePath,
			Snippet:    makeSnippet(chunk.Content, query),
			Score:      sc.score,
			Mode:       mode,
		})
	}

	return results, nil
}

// limiter returns the caller's rate limiter, creating it on first use.
func (s *SearchService) limiter(caller string) *rate.Limiter {
	key := callerKey(caller)

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters[key]; ok {
		return l
	}

	rpm := s.cfg.RatePerMinute
	if rpm <= 0 {
		rpm = 120
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	s.limiters[key] = l
	return l
}

func callerKey(caller string) string {
	if caller == "" {
		return anonymousCaller
	}
	return caller
}

// acquirePool claims a slot in the concurrency pool, waiting up to
// the acquire timeout before failing with a capacity error.
func (s *SearchService) acquirePool(ctx context.Context) (func(), error) {
	acquireCtx := ctx
	if s.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.cfg.AcquireTimeout)
		defer cancel()
	}

	if err := s.pool.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Search pool full past acquire timeout")
		return nil, domain.ErrCapacity
	}
	return func() { s.pool.Release(1) }, nil
}

// cacheKey derives a stable key from everything that affects results.
func (s *SearchService) cacheKey(query string, mode domain.SearchMode, opts domain.SearchOptions) string {
	raw := fmt.Sprintf("%s|%s|%d|%s|%s|%.4f",
		query, mode, opts.Limit,
		opts.Filters.Language, opts.Filters.ContentType,
		opts.MinSimilarity)
	sum := sha256.Sum256([]byte(raw))
	return "search:" + hex.EncodeToString(sum[:])
}

// cachedResults returns cached results for key, if present and
// decodable. A corrupt entry is treated as a miss.
func (s *SearchService) cachedResults(ctx context.Context, key string) ([]domain.SearchResult, bool) {
	payload, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var results []domain.SearchResult
	if err := json.Unmarshal(payload, &results); err != nil {
		logger.Warn("Discarding undecodable cache entry: %v", err)
		return nil, false
	}
	return results, true
}

// storeResults caches results with the mode's TTL. Failures are
// logged and swallowed; the cache never breaks a search.
func (s *SearchService) storeResults(ctx context.Context, key string, mode domain.SearchMode, results []domain.SearchResult) {
	payload, err := json.Marshal(results)
	if err != nil {
		logger.Warn("Cannot encode results for cache: %v", err)
		return
	}
	s.cache.Set(ctx, key, payload, s.cacheCfg.TTLForMode(mode))
}

// normaliseQuery canonicalises whitespace and case so equivalent
// queries share a cache entry.
func normaliseQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// snippetLength bounds the excerpt returned with each result.
const snippetLength = 200

// makeSnippet excerpts the chunk content around the first matched
// query term, falling back to the chunk head when nothing matches.
func makeSnippet(content, query string) string {
	contentLower := strings.ToLower(content)

	at := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(contentLower, term); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}

	start := 0
	if at > snippetLength/2 {
		start = at - snippetLength/2
	}
	end := start + snippetLength
	if end > len(content) {
		end = len(content)
	}

	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}
