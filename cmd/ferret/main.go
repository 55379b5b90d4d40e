// Command ferret indexes text and code into vector and lexical
// representations and serves hybrid search over them.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferret-search/ferret/internal/adapters/driven/cache"
	"github.com/ferret-search/ferret/internal/adapters/driven/config/file"
	"github.com/ferret-search/ferret/internal/adapters/driven/embedding/mock"
	"github.com/ferret-search/ferret/internal/adapters/driven/embedding/ollama"
	"github.com/ferret-search/ferret/internal/adapters/driven/embedding/openai"
	"github.com/ferret-search/ferret/internal/adapters/driven/storage/sqlite"
	"github.com/ferret-search/ferret/internal/adapters/driving/cli"
	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
	"github.com/ferret-search/ferret/internal/core/services"
	"github.com/ferret-search/ferret/internal/postprocessors/chunker"
	"github.com/ferret-search/ferret/internal/watcher"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configStore.Config()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	store, err := sqlite.NewStore(filepath.Join(home, ".ferret", "data"))
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}
	defer store.Close()

	backends, err := buildBackends(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("configuring embedding backends: %w", err)
	}
	manager, err := services.NewBackendManager(cfg.Embedding, backends)
	if err != nil {
		return fmt.Errorf("configuring backend manager: %w", err)
	}
	defer manager.Close()

	var resultCache driven.ResultCache
	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.Cache)
		if err != nil {
			return fmt.Errorf("configuring result cache: %w", err)
		}
		defer c.Close()
		resultCache = c
	}

	docStore := store.DocumentStore()
	searchIndex := store.SearchEngine()
	vectorIndex := store.VectorIndex()

	searchSvc := services.NewSearchService(
		docStore, searchIndex, vectorIndex, manager, resultCache, cfg.Search, cfg.Cache)
	ingestSvc := services.NewIngestService(
		docStore, searchIndex, vectorIndex, chunker.FromConfig(cfg.Chunking), manager, cfg.Ingest)
	statusSvc := services.NewStatusService(docStore, manager, resultCache, nil)

	cli.SetServices(cli.Services{
		Search:    searchSvc,
		Ingestor:  ingestSvc,
		Status:    statusSvc,
		Documents: docStore,
		Watcher: func(root string) (driving.Watcher, error) {
			w, err := watcher.New(root, cfg.Watcher, ingestSvc)
			if err != nil {
				return nil, err
			}
			statusSvc.RegisterWatcher(w)
			return w, nil
		},
	})
	cli.SetVersion(version)

	return cli.Execute()
}

// buildBackends instantiates the configured embedding providers.
// In mock mode only the deterministic mock backend is built.
func buildBackends(cfg domain.EmbeddingConfig) ([]driven.EmbeddingBackend, error) {
	if cfg.MockMode {
		return []driven.EmbeddingBackend{mock.New(cfg.MockDimensions)}, nil
	}

	var backends []driven.EmbeddingBackend
	for _, bc := range cfg.Backends {
		if !bc.Enabled {
			continue
		}
		switch bc.Name {
		case ollama.BackendName:
			backends = append(backends, ollama.New(ollama.FromBackendConfig(bc)))
		case openai.BackendName:
			b, err := openai.New(openai.FromBackendConfig(bc))
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		case services.MockBackendName:
			backends = append(backends, mock.New(bc.Dimensions))
		default:
			return nil, fmt.Errorf("%w: unknown embedding backend %q", domain.ErrInvalidInput, bc.Name)
		}
	}
	return backends, nil
}
