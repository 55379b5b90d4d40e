package domain

import (
	"fmt"
	"time"
)

// Operational defaults applied to backends that leave these unset.
const (
	DefaultBackendTimeout     = 30 * time.Second
	DefaultBackendMaxRetries  = 3
	DefaultBackendRetryDelay  = time.Second
	DefaultBackendConcurrency = 8
	DefaultBackendBatchSize   = 16
)

// ChunkingConfig bounds the chunker's token windows.
type ChunkingConfig struct {
	// MinTokens is the smallest allowed chunk, except the final
	// chunk of a document which may be shorter.
	MinTokens int `toml:"min_tokens"`

	// MaxTokens is the token budget no chunk may exceed.
	MaxTokens int `toml:"max_tokens"`

	// OverlapRatio is the fraction of MaxTokens shared between
	// adjacent chunks.
	OverlapRatio float64 `toml:"overlap_ratio"`
}

// BackendConfig configures one embedding provider.
type BackendConfig struct {
	// Name identifies the backend (ollama, openai, mock).
	Name string `toml:"name"`

	// Enabled controls whether the backend participates in selection.
	Enabled bool `toml:"enabled"`

	// Priority orders backends; lower values are tried first.
	Priority int `toml:"priority"`

	// BaseURL is the provider endpoint.
	BaseURL string `toml:"base_url"`

	// Model is the default embedding model.
	Model string `toml:"model"`

	// Dimensions is the embedding vector size.
	Dimensions int `toml:"dimensions"`

	// Timeout bounds each request.
	Timeout time.Duration `toml:"timeout"`

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `toml:"max_retries"`

	// RetryDelay seeds the exponential backoff between retries.
	RetryDelay time.Duration `toml:"retry_delay"`

	// MaxConcurrentRequests bounds in-flight requests to this backend.
	MaxConcurrentRequests int `toml:"max_concurrent_requests"`

	// BatchSize is the largest batch sent in one request. Larger
	// batches are split into sequential sub-batches.
	BatchSize int `toml:"batch_size"`
}

// EmbeddingConfig configures the backend manager.
type EmbeddingConfig struct {
	// Backends is the provider list, selected by priority.
	Backends []BackendConfig `toml:"backends"`

	// AllowFallback lets the manager fall through to the next
	// enabled backend when the primary exhausts its retries.
	AllowFallback bool `toml:"allow_fallback"`

	// MockMode bypasses all network backends and produces
	// deterministic placeholder vectors. No backend is considered
	// enabled while mock mode is active.
	MockMode bool `toml:"mock_mode"`

	// MockDimensions is the vector size used in mock mode.
	MockDimensions int `toml:"mock_dimensions"`
}

// IngestConfig bounds the ingestion pipeline.
type IngestConfig struct {
	// Concurrency is the number of documents processed in parallel.
	Concurrency int `toml:"concurrency"`

	// MaxAttempts is the per-document retry budget.
	MaxAttempts int `toml:"max_attempts"`

	// BackoffBase seeds the per-document retry backoff
	// (backoff_base * 2^attempt).
	BackoffBase time.Duration `toml:"backoff_base"`
}

// CacheConfig configures the search result cache.
type CacheConfig struct {
	// Enabled controls whether results are cached at all.
	Enabled bool `toml:"enabled"`

	// MaxEntries bounds the cache size; least recently used
	// entries are evicted beyond it.
	MaxEntries int `toml:"max_entries"`

	// SemanticTTL is the lifetime of semantic results. Embeddings
	// are stable, so these are cached longest.
	SemanticTTL time.Duration `toml:"semantic_ttl"`

	// KeywordTTL is the lifetime of keyword results. The lexical
	// index is volatile, so these expire sooner.
	KeywordTTL time.Duration `toml:"keyword_ttl"`

	// HybridTTL is the lifetime of fused results.
	HybridTTL time.Duration `toml:"hybrid_ttl"`

	// CompressionThreshold is the payload size in bytes above which
	// cached entries are gzip-compressed.
	CompressionThreshold int `toml:"compression_threshold"`
}

// TTLForMode returns the lifetime for results of the given mode.
func (c CacheConfig) TTLForMode(mode SearchMode) time.Duration {
	switch mode {
	case SearchModeSemantic:
		return c.SemanticTTL
	case SearchModeKeyword:
		return c.KeywordTTL
	default:
		return c.HybridTTL
	}
}

// SearchConfig bounds the hybrid search coordinator.
type SearchConfig struct {
	// SemanticWeight scales normalised semantic scores in hybrid
	// fusion. Weights are normalised to sum to one.
	SemanticWeight float64 `toml:"semantic_weight"`

	// KeywordWeight scales normalised keyword scores in hybrid fusion.
	KeywordWeight float64 `toml:"keyword_weight"`

	// RatePerMinute is the per-caller query ceiling.
	RatePerMinute int `toml:"rate_per_minute"`

	// MaxConcurrent bounds searches executing system-wide.
	MaxConcurrent int `toml:"max_concurrent"`

	// AcquireTimeout is how long a search waits for pool capacity
	// before failing with a capacity error.
	AcquireTimeout time.Duration `toml:"acquire_timeout"`
}

// WatcherConfig bounds the continuous indexing watcher.
type WatcherConfig struct {
	// IncludeExtensions is the extension allow-list (".go", ".md").
	// Empty means all extensions are eligible.
	IncludeExtensions []string `toml:"include_extensions"`

	// ExcludeDirs is the directory deny-list (".git", "node_modules").
	ExcludeDirs []string `toml:"exclude_dirs"`

	// DebounceWindow is the quiet period collapsing bursts of
	// events for one path into a single re-index request.
	DebounceWindow time.Duration `toml:"debounce_window"`

	// QueueSize bounds each per-kind queue. When full, the oldest
	// entry is dropped rather than blocking the event source.
	QueueSize int `toml:"queue_size"`

	// IngestConcurrency is the worker count draining the queues.
	IngestConcurrency int `toml:"ingest_concurrency"`

	// DrainTimeout bounds shutdown; items not drained by the
	// deadline are abandoned and logged.
	DrainTimeout time.Duration `toml:"drain_timeout"`

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `toml:"max_file_size"`
}

// Config aggregates all component configuration.
type Config struct {
	Chunking  ChunkingConfig  `toml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Ingest    IngestConfig    `toml:"ingest"`
	Cache     CacheConfig     `toml:"cache"`
	Search    SearchConfig    `toml:"search"`
	Watcher   WatcherConfig   `toml:"watcher"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		Chunking: ChunkingConfig{
			MinTokens:    100,
			MaxTokens:    512,
			OverlapRatio: 0.15,
		},
		Embedding: EmbeddingConfig{
			AllowFallback:  true,
			MockDimensions: 384,
			Backends: []BackendConfig{
				{
					Name:                  "ollama",
					Enabled:               true,
					Priority:              1,
					BaseURL:               "http://localhost:11434",
					Model:                 "nomic-embed-text",
					Dimensions:            768,
					Timeout:               DefaultBackendTimeout,
					MaxRetries:            DefaultBackendMaxRetries,
					RetryDelay:            DefaultBackendRetryDelay,
					MaxConcurrentRequests: DefaultBackendConcurrency,
					BatchSize:             DefaultBackendBatchSize,
				},
			},
		},
		Ingest: IngestConfig{
			Concurrency: 4,
			MaxAttempts: 3,
			BackoffBase: time.Second,
		},
		Cache: CacheConfig{
			Enabled:              true,
			MaxEntries:           1024,
			SemanticTTL:          time.Hour,
			KeywordTTL:           10 * time.Minute,
			HybridTTL:            30 * time.Minute,
			CompressionThreshold: 8 * 1024,
		},
		Search: SearchConfig{
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
			RatePerMinute:  120,
			MaxConcurrent:  8,
			AcquireTimeout: 5 * time.Second,
		},
		Watcher: WatcherConfig{
			ExcludeDirs: []string{
				".git", ".hg", ".svn", "node_modules", "vendor",
				"__pycache__", ".venv", "venv", "dist", "build",
				"target", ".idea", ".vscode",
			},
			DebounceWindow:    300 * time.Millisecond,
			QueueSize:         1024,
			IngestConcurrency: 4,
			DrainTimeout:      10 * time.Second,
			MaxFileSize:       10 * 1024 * 1024,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	if c.Chunking.MinTokens <= 0 || c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("%w: chunk token bounds must be positive", ErrInvalidInput)
	}
	if c.Chunking.MinTokens > c.Chunking.MaxTokens {
		return fmt.Errorf("%w: chunking min_tokens exceeds max_tokens", ErrInvalidInput)
	}
	if c.Chunking.OverlapRatio < 0 || c.Chunking.OverlapRatio >= 1 {
		return fmt.Errorf("%w: overlap_ratio must be in [0, 1)", ErrInvalidInput)
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("%w: ingest concurrency must be positive", ErrInvalidInput)
	}
	if c.Search.SemanticWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative", ErrInvalidInput)
	}
	if c.Search.SemanticWeight+c.Search.KeywordWeight == 0 {
		return fmt.Errorf("%w: at least one fusion weight must be positive", ErrInvalidInput)
	}
	if !c.Embedding.MockMode {
		enabled := 0
		for _, b := range c.Embedding.Backends {
			if b.Enabled {
				enabled++
			}
		}
		if enabled == 0 {
			return fmt.Errorf("%w: no embedding backend enabled and mock_mode off", ErrInvalidInput)
		}
	}
	if c.Watcher.QueueSize <= 0 {
		return fmt.Errorf("%w: watcher queue_size must be positive", ErrInvalidInput)
	}
	return nil
}
