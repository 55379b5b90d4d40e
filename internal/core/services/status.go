package services

import (
	"context"
	"fmt"

	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
)

// Ensure StatusService implements the interface.
var _ driving.StatusReporter = (*StatusService)(nil)

// StatusService aggregates component health into one report.
// Every dependency except the document store is optional; missing
// components simply leave their section empty.
type StatusService struct {
	docStore driven.DocumentStore
	manager  *BackendManager
	cache    driven.ResultCache
	watcher  driving.Watcher
}

// NewStatusService creates a status service.
func NewStatusService(
	docStore driven.DocumentStore,
	manager *BackendManager,
	cache driven.ResultCache,
	watcher driving.Watcher,
) *StatusService {
	return &StatusService{
		docStore: docStore,
		manager:  manager,
		cache:    cache,
		watcher:  watcher,
	}
}

// RegisterWatcher attaches a running watcher to subsequent reports.
// Must be called before the watcher starts serving status requests.
func (s *StatusService) RegisterWatcher(w driving.Watcher) {
	s.watcher = w
}

// Status collects a point-in-time report across components.
func (s *StatusService) Status(ctx context.Context) (*driving.StatusReport, error) {
	report := &driving.StatusReport{}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	report.Documents = len(docs)
	for _, doc := range docs {
		chunks, err := s.docStore.GetChunks(ctx, doc.ID)
		if err != nil {
			continue
		}
		report.Chunks += len(chunks)
	}

	if s.manager != nil {
		report.Backends = s.manager.Stats()
		report.BackendHealth = make(map[string]string)
		for name, pingErr := range s.manager.Ping(ctx) {
			if pingErr != nil {
				report.BackendHealth[name] = pingErr.Error()
			} else {
				report.BackendHealth[name] = ""
			}
		}
	}

	if s.cache != nil {
		report.Cache = s.cache.Stats()
	}

	if s.watcher != nil {
		status := s.watcher.Status()
		report.Watcher = &status
	}

	return report, nil
}
