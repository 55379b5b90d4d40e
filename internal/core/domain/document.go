package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentType classifies a document's content for chunking and filtering.
type ContentType string

// Recognised content types.
const (
	// ContentTypeCode is source code in any programming language.
	ContentTypeCode ContentType = "code"

	// ContentTypeText is plain prose.
	ContentTypeText ContentType = "text"

	// ContentTypeMarkdown is markdown-formatted text.
	ContentTypeMarkdown ContentType = "markdown"
)

// IsValid returns true if the content type is recognised.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentTypeCode, ContentTypeText, ContentTypeMarkdown:
		return true
	default:
		return false
	}
}

// Document represents an indexed source unit.
// A changed document is fully re-chunked and re-embedded; its chunks
// are replaced as a whole, never partially updated.
type Document struct {
	// ID is the stable identifier, derived from the source path.
	ID string

	// SourcePath is the filesystem location the content came from.
	SourcePath string

	// ContentType classifies the content (code, text, markdown).
	ContentType ContentType

	// Language is the programming or natural language, when known.
	Language string

	// Content is the full text content before chunking.
	Content string

	// ContentHash is the SHA-256 of Content, used to detect changes
	// and short-circuit re-ingestion of unchanged documents.
	ContentHash string

	// LastModified is the source's modification time.
	LastModified time.Time

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-indexed.
	UpdatedAt time.Time
}

// DocumentID derives the stable document identifier for a source path.
// The same path always maps to the same ID so re-ingestion supersedes
// prior chunks instead of accumulating duplicates.
func DocumentID(sourcePath string) string {
	sum := sha256.Sum256([]byte(sourcePath))
	return hex.EncodeToString(sum[:])
}

// HashContent computes the content hash stored on a Document.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Chunk represents a contiguous token window of a document.
// It is the unit of embedding and indexing. Chunks from one document
// are ordered by Position and cover the document with the configured
// overlap.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document. Chunks are
	// cascade-deleted with their document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// TokenCount is the number of tokens in Content.
	TokenCount int

	// Embedding is the vector representation for semantic search.
	// Nil until the embedding backend has produced one.
	Embedding []float32

	// EmbeddingModel is the model that produced Embedding. Vectors
	// compared under one query must share the same model.
	EmbeddingModel string

	// EmbeddingBackend names the provider that produced Embedding.
	EmbeddingBackend string
}
