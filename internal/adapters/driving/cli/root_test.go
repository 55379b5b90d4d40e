package cli

import (
	"context"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
)

// mockSearchService returns canned results for command tests.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.results != nil {
		return m.results, nil
	}
	return []domain.SearchResult{
		{
			ChunkID:    "chunk-1",
			DocumentID: "doc-1",
			SourcePath: "/src/main.go",
			Snippet:    "func main() { ... }",
			Score:      0.92,
		},
	}, nil
}

// mockIngestor records ingestion batches.
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

// mockStatusReporter returns a canned status report.
type mockStatusReporter struct {
	report *driving.StatusReport
	err    error
}

func (m *mockStatusReporter) Status(_ context.Context) (*driving.StatusReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	return &driving.StatusReport{Documents: 2, Chunks: 8}, nil
}

// setupTestServices wires mock services into the package and returns a
// cleanup restoring the previous wiring.
func setupTestServices() func() {
	oldSearch := searchService
	oldIngest := ingestService
	oldStatus := statusService
	oldDocs := documentStore
	oldWatcher := newWatcher

	searchService = &mockSearchService{}
	ingestService = &mockIngestor{}
	statusService = &mockStatusReporter{}

	return func() {
		searchService = oldSearch
		ingestService = oldIngest
		statusService = oldStatus
		documentStore = oldDocs
		newWatcher = oldWatcher
	}
}
