package driving

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
)

// IngestDocument is one unit of an ingestion batch.
type IngestDocument struct {
	// Path is the source location.
	Path string

	// Content is the full document text.
	Content string

	// ContentType classifies the content; inferred from the path
	// when empty.
	ContentType domain.ContentType
}

// DocumentFailure records a document that failed permanently.
type DocumentFailure struct {
	// Path identifies the failed document.
	Path string

	// Err is the final error after exhausting retries.
	Err error
}

// IngestReport summarises a batch ingestion.
// A batch never aborts on individual document failures; the report
// carries both counts.
type IngestReport struct {
	// Indexed is the count of successfully indexed documents.
	Indexed int

	// Skipped is the count of documents whose content was unchanged.
	Skipped int

	// Failed is the count of documents that failed permanently.
	Failed int

	// Failures details each permanently failed document.
	Failures []DocumentFailure
}

// Ingestor orchestrates chunking, embedding, and indexing of documents.
type Ingestor interface {
	// IngestDocuments processes a batch with bounded concurrency.
	// Each document is chunked, embedded, and upserted, replacing
	// all of its prior chunks atomically. Per-document failures are
	// retried with backoff and reported, not raised.
	IngestDocuments(ctx context.Context, batch []IngestDocument) (*IngestReport, error)

	// DeleteDocument removes a document's index entries by path.
	// Used for filesystem deletions; no re-chunking occurs.
	DeleteDocument(ctx context.Context, path string) error
}
