package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ferret-search/ferret/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// the document, keyword, and vector store interfaces through wrapper
// types sharing one connection.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ferret/data/index.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ferret", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SearchEngine returns a SearchEngine interface backed by this store.
func (s *Store) SearchEngine() driven.SearchEngine {
	return &searchEngine{store: s}
}

// VectorIndex returns a VectorIndex interface backed by this store.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_path, content_type, language, content,
			content_hash, last_modified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_path = excluded.source_path,
			content_type = excluded.content_type,
			language = excluded.language,
			content = excluded.content,
			content_hash = excluded.content_hash,
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at
	`, doc.ID, doc.SourcePath, string(doc.ContentType), doc.Language, doc.Content,
		doc.ContentHash, doc.LastModified, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// ReplaceChunks atomically replaces all chunks for a document.
// Prior chunks are deleted and the new set inserted within one
// transaction, so readers never observe a partial replacement.
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ?", documentID,
	); err != nil {
		return fmt.Errorf("deleting prior chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, token_count,
			embedding, embedding_model, embedding_backend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingBlob := float32SliceToBytes(chunk.Embedding)

		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Content,
			chunk.Position, chunk.TokenCount, embeddingBlob,
			chunk.EmbeddingModel, chunk.EmbeddingBackend); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_path, content_type, language, content,
			content_hash, last_modified, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// GetDocumentByPath retrieves a document by source path.
func (s *documentStore) GetDocumentByPath(ctx context.Context, sourcePath string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_path, content_type, language, content,
			content_hash, last_modified, created_at, updated_at
		FROM documents WHERE source_path = ?
	`, sourcePath)

	return scanDocument(row)
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, token_count,
			embedding, embedding_model, embedding_backend
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, position, token_count,
			embedding, embedding_model, embedding_backend
		FROM chunks WHERE id = ?
	`, id)

	var chunk domain.Chunk
	var embeddingBlob []byte
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Position, &chunk.TokenCount, &embeddingBlob,
		&chunk.EmbeddingModel, &chunk.EmbeddingBackend); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}

// DeleteDocument removes a document; chunks cascade via foreign key
// and the FTS trigger.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns all indexed documents.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_path, content_type, language, content,
			content_hash, last_modified, created_at, updated_at
		FROM documents ORDER BY source_path
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ==================== Search Engine ====================

// searchEngine implements driven.SearchEngine on the chunks_fts table.
type searchEngine struct {
	store *Store
}

var _ driven.SearchEngine = (*searchEngine)(nil)

// Index adds or updates a chunk in the keyword index. Identifier
// sub-words are indexed alongside the raw content so camelCase and
// snake_case symbols match word-level queries; the raw text keeps
// exact identifier queries working.
func (e *searchEngine) Index(ctx context.Context, chunk domain.Chunk) error {
	if _, err := e.store.db.ExecContext(ctx,
		"DELETE FROM chunks_fts WHERE chunk_id = ?", chunk.ID,
	); err != nil {
		return fmt.Errorf("removing stale fts entry: %w", err)
	}

	ftsText := chunk.Content
	if expanded := expandIdentifiers(chunk.Content); expanded != "" {
		ftsText += "\n" + expanded
	}

	if _, err := e.store.db.ExecContext(ctx,
		"INSERT INTO chunks_fts (content, chunk_id) VALUES (?, ?)",
		ftsText, chunk.ID,
	); err != nil {
		return fmt.Errorf("indexing chunk: %w", err)
	}
	return nil
}

// Delete removes a chunk from the keyword index.
func (e *searchEngine) Delete(ctx context.Context, chunkID string) error {
	if _, err := e.store.db.ExecContext(ctx,
		"DELETE FROM chunks_fts WHERE chunk_id = ?", chunkID,
	); err != nil {
		return fmt.Errorf("deleting fts entry: %w", err)
	}
	return nil
}

// Search performs a keyword search scored with bm25. SQLite's bm25()
// returns lower-is-better values, so scores are negated before they
// leave the adapter. Equal scores rank fresher documents first.
func (e *searchEngine) Search(
	ctx context.Context, query string, limit int, filters domain.SearchFilters,
) ([]driven.SearchHit, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT chunks_fts.chunk_id, bm25(chunks_fts) AS score, d.last_modified
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
	`
	args := []any{sanitized}
	sqlQuery, args = applyFilters(sqlQuery, args, filters)
	sqlQuery += " ORDER BY score, d.last_modified DESC, chunks_fts.chunk_id LIMIT ?"
	args = append(args, limit)

	rows, err := e.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("executing fts search: %w", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.SearchHit
		var lastModified sql.NullTime
		if err := rows.Scan(&hit.ChunkID, &hit.Score, &lastModified); err != nil {
			return nil, fmt.Errorf("scanning fts hit: %w", err)
		}
		hit.Score = -hit.Score
		if lastModified.Valid {
			hit.LastModified = lastModified.Time
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fts hits: %w", err)
	}

	return hits, nil
}

// Close is a no-op; the shared connection is owned by the Store.
func (e *searchEngine) Close() error {
	return nil
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex over the embedding column.
// Similarity is computed in Go; the pure-Go driver has no vector
// extension.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Add inserts or replaces the vector for the given chunk ID.
func (v *vectorIndex) Add(ctx context.Context, chunkID string, embedding []float32) error {
	result, err := v.store.db.ExecContext(ctx,
		"UPDATE chunks SET embedding = ? WHERE id = ?",
		float32SliceToBytes(embedding), chunkID,
	)
	if err != nil {
		return fmt.Errorf("storing vector: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking vector update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, chunkID)
	}
	return nil
}

// Delete removes a vector from the index.
func (v *vectorIndex) Delete(ctx context.Context, chunkID string) error {
	if _, err := v.store.db.ExecContext(ctx,
		"UPDATE chunks SET embedding = NULL WHERE id = ?", chunkID,
	); err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}
	return nil
}

// vectorCandidate holds one scored chunk during ranking.
type vectorCandidate struct {
	chunkID    string
	similarity float64
}

// Search finds the k nearest neighbours by cosine similarity.
// Candidates with a zero-norm or NaN similarity are excluded.
func (v *vectorIndex) Search(
	ctx context.Context, query []float32, k int, filters domain.SearchFilters,
) ([]driven.VectorHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}

	sqlQuery := `
		SELECT c.id, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
	`
	args := []any{}
	sqlQuery, args = applyFilters(sqlQuery, args, filters)

	rows, err := v.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var candidates []vectorCandidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}

		similarity, ok := cosineSimilarity(query, bytesToFloat32Slice(blob))
		if !ok {
			continue
		}
		candidates = append(candidates, vectorCandidate{chunkID: chunkID, similarity: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	hits := make([]driven.VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = driven.VectorHit{ChunkID: c.chunkID, Similarity: c.similarity}
	}
	return hits, nil
}

// Close is a no-op; the shared connection is owned by the Store.
func (v *vectorIndex) Close() error {
	return nil
}

// ==================== Helper Functions ====================

// applyFilters appends document attribute predicates to a query that
// already joins documents as d.
func applyFilters(query string, args []any, filters domain.SearchFilters) (string, []any) {
	if filters.Language != "" {
		query += " AND d.language = ?"
		args = append(args, filters.Language)
	}
	if filters.ContentType != "" {
		query += " AND d.content_type = ?"
		args = append(args, string(filters.ContentType))
	}
	return query, args
}

// expandIdentifiers collects the sub-words of camelCase and
// snake_case identifiers in text. The tokenizer keeps "StartServer"
// as one token, so the split parts must be indexed explicitly for a
// query like "server" to match code symbols.
func expandIdentifiers(text string) string {
	var extra []string
	for _, word := range strings.Fields(text) {
		parts := splitIdentifier(word)
		if len(parts) > 1 {
			extra = append(extra, parts...)
		}
	}
	return strings.Join(extra, " ")
}

// splitIdentifier breaks a word on non-alphanumeric separators and
// camelCase boundaries, keeping acronym runs together: "StartServer"
// yields [Start Server], "drain_timeout" yields [drain timeout],
// "HTTPServer" yields [HTTP Server].
func splitIdentifier(word string) []string {
	var parts []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, string(current))
			current = nil
		}
	}

	runes := []rune(word)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]):
			flush()
		case len(current) > 1 && unicode.IsUpper(r) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]):
			flush()
		}
		current = append(current, r)
	}
	flush()
	return parts
}

// sanitizeFTSQuery quotes query terms so user input can never inject
// FTS5 syntax. Each whitespace-separated term becomes a quoted string,
// which also neutralises Boolean operators like AND and NEAR.
func sanitizeFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// cosineSimilarity computes the cosine similarity of two vectors.
// The second result is false when the similarity is undefined: a
// dimension mismatch, a zero-norm vector, or a non-finite result.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		return 0, false
	}
	return similarity, true
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var contentType string
	var lastModified sql.NullTime

	if err := row.Scan(&doc.ID, &doc.SourcePath, &contentType, &doc.Language,
		&doc.Content, &doc.ContentHash, &lastModified,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.ContentType = domain.ContentType(contentType)
	if lastModified.Valid {
		doc.LastModified = lastModified.Time
	}
	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var contentType string
	var lastModified sql.NullTime

	if err := rows.Scan(&doc.ID, &doc.SourcePath, &contentType, &doc.Language,
		&doc.Content, &doc.ContentHash, &lastModified,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.ContentType = domain.ContentType(contentType)
	if lastModified.Valid {
		doc.LastModified = lastModified.Time
	}
	return &doc, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Position, &chunk.TokenCount, &embeddingBlob,
		&chunk.EmbeddingModel, &chunk.EmbeddingBackend); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}
