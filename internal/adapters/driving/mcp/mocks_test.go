package mcp

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	query   string
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.query = query
	m.opts = opts
	return m.results, m.err
}

// mockStatusReporter is a mock implementation of driving.StatusReporter.
type mockStatusReporter struct {
	report *driving.StatusReport
	err    error
}

func (m *mockStatusReporter) Status(_ context.Context) (*driving.StatusReport, error) {
	return m.report, m.err
}

// mockIngestor is a mock implementation of driving.Ingestor.
type mockIngestor struct {
	report  *driving.IngestReport
	err     error
	batches [][]driving.IngestDocument
}

func (m *mockIngestor) IngestDocuments(
	_ context.Context,
	batch []driving.IngestDocument,
) (*driving.IngestReport, error) {
	m.batches = append(m.batches, batch)
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	return &driving.IngestReport{Indexed: len(batch)}, nil
}

func (m *mockIngestor) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

// mockDocumentStore is a mock implementation of driven.DocumentStore
// covering only what the resource handlers touch.
type mockDocumentStore struct {
	documents []domain.Document
	document  *domain.Document
	err       error
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, _ *domain.Document) error {
	return m.err
}

func (m *mockDocumentStore) GetDocument(_ context.Context, _ string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.document == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, nil
}

func (m *mockDocumentStore) GetDocumentByPath(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentStore) ReplaceChunks(_ context.Context, _ string, _ []domain.Chunk) error {
	return m.err
}

func (m *mockDocumentStore) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockDocumentStore) GetChunk(_ context.Context, _ string) (*domain.Chunk, error) {
	return nil, m.err
}
