package mcp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
)

// ErrMissingIngestor is returned when the index tool is invoked without
// an ingestor configured.
var ErrMissingIngestor = errors.New("mcp: ingestor is not configured")

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to find documents"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Mode  string `json:"mode,omitempty" jsonschema:"search mode: hybrid (default), semantic, or keyword"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Path       string  `json:"path"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// BackendStatusOutput reports one embedding backend.
type BackendStatusOutput struct {
	Name      string `json:"name"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
	Health    string `json:"health"`
}

// WatcherStatusOutput reports the watcher, when one runs.
type WatcherStatusOutput struct {
	State       string         `json:"state"`
	QueueDepths map[string]int `json:"queue_depths"`
	Dropped     uint64         `json:"dropped"`
	Processed   uint64         `json:"processed"`
	Abandoned   uint64         `json:"abandoned"`
}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Documents    int                   `json:"documents"`
	Chunks       int                   `json:"chunks"`
	Backends     []BackendStatusOutput `json:"backends"`
	CacheHitRate float64               `json:"cache_hit_rate"`
	CacheEntries int                   `json:"cache_entries"`
	Watcher      *WatcherStatusOutput  `json:"watcher,omitempty"`
}

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	Path string `json:"path" jsonschema:"file or directory to index"`
}

// IndexOutput is the output schema for the index tool.
type IndexOutput struct {
	Indexed int      `json:"indexed"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search across all indexed documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Report index size, backend health, cache and watcher state",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index",
		Description: "Index a file or directory into the search index",
	}, s.handleIndex)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{
		Limit:  limit,
		Mode:   domain.SearchMode(input.Mode),
		Caller: "mcp",
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			ChunkID:    results[i].ChunkID,
			DocumentID: results[i].DocumentID,
			Path:       results[i].SourcePath,
			Score:      results[i].Score,
			Snippet:    results[i].Snippet,
		}
	}

	return nil, output, nil
}

// handleStatus handles the status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Status == nil {
		return nil, StatusOutput{}, errors.New("mcp: status reporter is not configured")
	}

	report, err := s.ports.Status.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	output := StatusOutput{
		Documents:    report.Documents,
		Chunks:       report.Chunks,
		CacheHitRate: report.Cache.HitRate(),
		CacheEntries: report.Cache.Entries,
	}
	for _, b := range report.Backends {
		output.Backends = append(output.Backends, BackendStatusOutput{
			Name:      b.Name,
			Successes: b.Successes,
			Failures:  b.Failures,
			Health:    report.BackendHealth[b.Name],
		})
	}
	if report.Watcher != nil {
		output.Watcher = &WatcherStatusOutput{
			State:       string(report.Watcher.State),
			QueueDepths: report.Watcher.QueueDepths,
			Dropped:     report.Watcher.Dropped,
			Processed:   report.Watcher.Processed,
			Abandoned:   report.Watcher.Abandoned,
		}
	}

	return nil, output, nil
}

// handleIndex handles the index tool invocation.
func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	if s.ports.Ingestor == nil {
		return nil, IndexOutput{}, ErrMissingIngestor
	}

	batch, err := collectDocuments(input.Path)
	if err != nil {
		return nil, IndexOutput{}, err
	}

	report, err := s.ports.Ingestor.IngestDocuments(ctx, batch)
	if err != nil {
		return nil, IndexOutput{}, err
	}

	output := IndexOutput{
		Indexed: report.Indexed,
		Skipped: report.Skipped,
		Failed:  report.Failed,
	}
	for _, failure := range report.Failures {
		output.Errors = append(output.Errors, fmt.Sprintf("%s: %v", failure.Path, failure.Err))
	}
	return nil, output, nil
}

// collectDocuments reads a file, or every non-hidden regular file under
// a directory, into an ingestion batch.
func collectDocuments(path string) ([]driving.IngestDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %w", domain.ErrInvalidInput, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %w", domain.ErrInvalidInput, path, err)
	}

	if !info.IsDir() {
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		return []driving.IngestDocument{{Path: abs, Content: string(content)}}, nil
	}

	var batch []driving.IngestDocument
	walkErr := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		batch = append(batch, driving.IngestDocument{Path: p, Content: string(content)})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return batch, nil
}
