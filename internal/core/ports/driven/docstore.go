package driven

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for durable storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document by ID.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// ReplaceChunks atomically replaces all chunks for a document.
	// Prior chunks are deleted and the new set inserted within one
	// transaction, so readers never observe a mix of old and new
	// chunks for the same document.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByPath retrieves a document by source path.
	GetDocumentByPath(ctx context.Context, sourcePath string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// DeleteDocument removes a document and cascades to its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all indexed documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
