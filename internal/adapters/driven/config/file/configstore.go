package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/ferret-search/ferret/internal/core/domain"
)

const configFileName = "config.toml"

// ConfigStore is a TOML-backed store for the typed configuration.
// Configuration lives in a TOML file within the ferret config directory;
// missing keys fall back to domain.DefaultConfig.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	cfg      domain.Config
}

// NewConfigStore creates a TOML-based config store.
// If configDir is empty, defaults to ~/.ferret/config.toml.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".ferret")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, configFileName),
		cfg:      domain.DefaultConfig(),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Config returns the current configuration.
func (s *ConfigStore) Config() domain.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Save validates the given configuration and persists it to disk.
func (s *ConfigStore) Save(cfg domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Restricted permissions: the file may hold backend credentials.
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return err
	}

	s.cfg = cfg
	return nil
}

// Load reads configuration from the TOML file. A missing file yields
// the defaults; a malformed or invalid file is an error.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.cfg = domain.DefaultConfig()
			return nil
		}
		return err
	}

	cfg := domain.DefaultConfig()

	// go-toml appends array tables onto an existing slice, which would
	// merge file-defined backends with the defaults. Detach slice
	// defaults before decoding and restore them only when the file
	// leaves them unset.
	defBackends := cfg.Embedding.Backends
	defExclude := cfg.Watcher.ExcludeDirs
	cfg.Embedding.Backends = nil
	cfg.Watcher.ExcludeDirs = nil

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, s.filePath, err)
	}

	if cfg.Embedding.Backends == nil {
		cfg.Embedding.Backends = defBackends
	}
	if cfg.Watcher.ExcludeDirs == nil {
		cfg.Watcher.ExcludeDirs = defExclude
	}
	for i := range cfg.Embedding.Backends {
		normaliseBackend(&cfg.Embedding.Backends[i])
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", s.filePath, err)
	}

	s.cfg = cfg
	return nil
}

// normaliseBackend fills unset operational fields of a file-defined
// backend so a minimal [[embedding.backends]] table still works.
func normaliseBackend(bc *domain.BackendConfig) {
	if bc.Timeout <= 0 {
		bc.Timeout = domain.DefaultBackendTimeout
	}
	if bc.MaxRetries <= 0 {
		bc.MaxRetries = domain.DefaultBackendMaxRetries
	}
	if bc.RetryDelay <= 0 {
		bc.RetryDelay = domain.DefaultBackendRetryDelay
	}
	if bc.MaxConcurrentRequests <= 0 {
		bc.MaxConcurrentRequests = domain.DefaultBackendConcurrency
	}
	if bc.BatchSize <= 0 {
		bc.BatchSize = domain.DefaultBackendBatchSize
	}
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
