package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
	"github.com/ferret-search/ferret/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestService runs documents through the chunk, embed, and index
// pipeline with bounded concurrency.
//
// Documents are independent: one document's permanent failure is
// recorded in the report while the rest of the batch proceeds.
// Re-ingesting an unchanged document is a cheap no-op detected by
// content hash.
type IngestService struct {
	docStore    driven.DocumentStore
	searchIndex driven.SearchEngine
	vectorIndex driven.VectorIndex
	chunker     driven.Chunker
	embedder    Embedder
	cfg         domain.IngestConfig
}

// NewIngestService creates an ingestion service. The embedder is
// optional; without one, chunks are indexed for keyword search only.
func NewIngestService(
	docStore driven.DocumentStore,
	searchIndex driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	chunker driven.Chunker,
	embedder Embedder,
	cfg domain.IngestConfig,
) *IngestService {
	return &IngestService{
		docStore:    docStore,
		searchIndex: searchIndex,
		vectorIndex: vectorIndex,
		chunker:     chunker,
		embedder:    embedder,
		cfg:         cfg,
	}
}

// IngestDocuments processes a batch with bounded concurrency.
func (s *IngestService) IngestDocuments(
	ctx context.Context, batch []driving.IngestDocument,
) (*driving.IngestReport, error) {
	logger.Section("Document Ingestion")
	logger.Info("Ingesting %d documents", len(batch))

	report := &driving.IngestReport{}
	var mu sync.Mutex

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, doc := range batch {
		g.Go(func() error {
			outcome, err := s.ingestOne(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Failures = append(report.Failures, driving.DocumentFailure{
					Path: doc.Path,
					Err:  err,
				})
				logger.Warn("Document %s failed: %v", doc.Path, err)
			case outcome == outcomeSkipped:
				report.Skipped++
			default:
				report.Indexed++
			}

			// Individual failures never abort the batch; only a
			// cancelled context stops the group.
			return gctx.Err()
		})
	}

	err := g.Wait()
	logger.Info("Ingestion done: %d indexed, %d skipped, %d failed",
		report.Indexed, report.Skipped, report.Failed)
	return report, err
}

// DeleteDocument removes a document's index entries by path.
func (s *IngestService) DeleteDocument(ctx context.Context, path string) error {
	doc, err := s.docStore.GetDocumentByPath(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Delete for unindexed path %s, nothing to do", path)
			return nil
		}
		return fmt.Errorf("look up document for %s: %w", path, err)
	}

	chunks, err := s.docStore.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list chunks for %s: %w", doc.ID, err)
	}
	for _, chunk := range chunks {
		if err := s.searchIndex.Delete(ctx, chunk.ID); err != nil {
			logger.Warn("Remove chunk %s from keyword index: %v", chunk.ID, err)
		}
		if s.vectorIndex != nil {
			if err := s.vectorIndex.Delete(ctx, chunk.ID); err != nil {
				logger.Warn("Remove chunk %s from vector index: %v", chunk.ID, err)
			}
		}
	}

	if err := s.docStore.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document %s: %w", doc.ID, err)
	}

	logger.Info("Deleted document %s (%d chunks)", path, len(chunks))
	return nil
}

type ingestOutcome int

const (
	outcomeIndexed ingestOutcome = iota
	outcomeSkipped
)

// ingestOne processes a single document with per-document retries.
// Validation failures are permanent; everything else is retried with
// exponential backoff up to the attempt budget.
func (s *IngestService) ingestOne(ctx context.Context, in driving.IngestDocument) (ingestOutcome, error) {
	if in.Path == "" {
		return 0, fmt.Errorf("%w: document path is empty", domain.ErrInvalidInput)
	}

	hash := domain.HashContent(in.Content)
	var createdAt time.Time
	existing, err := s.docStore.GetDocumentByPath(ctx, in.Path)
	switch {
	case err == nil && existing.ContentHash == hash:
		logger.Debug("Content unchanged for %s, skipping", in.Path)
		return outcomeSkipped, nil
	case err == nil:
		createdAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrNotFound):
		return 0, fmt.Errorf("look up document for %s: %w", in.Path, err)
	}

	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.cfg.BackoffBase * time.Duration(1<<(attempt-1))
			logger.Debug("Retry %d for %s in %s", attempt, in.Path, delay)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = s.process(ctx, in, hash, createdAt)
		if lastErr == nil {
			return outcomeIndexed, nil
		}
		if errors.Is(lastErr, domain.ErrInvalidInput) || ctx.Err() != nil {
			break
		}
	}
	return 0, lastErr
}

// process performs one chunk-embed-index attempt for a document.
func (s *IngestService) process(ctx context.Context, in driving.IngestDocument, hash string, createdAt time.Time) error {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = domain.DetectContentType(in.Path)
	}

	doc := &domain.Document{
		ID:           domain.DocumentID(in.Path),
		SourcePath:   in.Path,
		ContentType:  contentType,
		Language:     domain.DetectLanguage(in.Path),
		Content:      in.Content,
		ContentHash:  hash,
		LastModified: now,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
	}

	chunks, err := s.chunker.Chunk(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", in.Path, err)
	}
	logger.Debug("Document %s: %d chunks", in.Path, len(chunks))

	if s.embedder != nil && len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, by, err := s.embedder.EmbedBatch(ctx, texts, "")
		if err != nil {
			return fmt.Errorf("embed %s: %w", in.Path, err)
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
			chunks[i].EmbeddingBackend = by.Backend
			chunks[i].EmbeddingModel = by.Model
		}
	}

	// Durable state first: the document row and the atomic chunk
	// swap, then the derived indexes.
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document %s: %w", in.Path, err)
	}

	prior, err := s.docStore.GetChunks(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("list prior chunks for %s: %w", doc.ID, err)
	}

	if err := s.docStore.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("replace chunks for %s: %w", in.Path, err)
	}

	for _, old := range prior {
		if err := s.searchIndex.Delete(ctx, old.ID); err != nil {
			logger.Warn("Remove stale chunk %s from keyword index: %v", old.ID, err)
		}
		if s.vectorIndex != nil {
			if err := s.vectorIndex.Delete(ctx, old.ID); err != nil {
				logger.Warn("Remove stale chunk %s from vector index: %v", old.ID, err)
			}
		}
	}

	for _, chunk := range chunks {
		if err := s.searchIndex.Index(ctx, chunk); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
		if s.vectorIndex != nil && len(chunk.Embedding) > 0 {
			if err := s.vectorIndex.Add(ctx, chunk.ID, chunk.Embedding); err != nil {
				return fmt.Errorf("add vector for chunk %s: %w", chunk.ID, err)
			}
		}
	}

	return nil
}
