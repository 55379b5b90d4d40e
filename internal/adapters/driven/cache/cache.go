// Package cache provides the in-process search result cache.
//
// Entries are LRU-evicted beyond the configured capacity and expire
// per entry after the TTL the caller supplies. Payloads above the
// compression threshold are stored gzip-compressed. The cache is
// strictly best effort: a decode failure is a miss, never an error.
package cache

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/logger"
)

// Ensure Cache implements the interface.
var _ driven.ResultCache = (*Cache)(nil)

// DefaultMaxEntries applies when no capacity is configured.
const DefaultMaxEntries = 1024

// entry is one cached payload with its expiry.
type entry struct {
	payload    []byte
	expiresAt  time.Time
	compressed bool
}

// Cache is an LRU result cache with per-entry TTLs.
type Cache struct {
	entries              *lru.Cache[string, entry]
	compressionThreshold int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache from configuration.
func New(cfg domain.CacheConfig) (*Cache, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{
		entries:              entries,
		compressionThreshold: cfg.CompressionThreshold,
	}, nil
}

// Get returns the payload for key. Expired entries are evicted on
// access and reported as misses.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return nil, false
	}

	payload := e.payload
	if e.compressed {
		decompressed, err := decompress(payload)
		if err != nil {
			logger.Warn("Evicting undecompressable cache entry: %v", err)
			c.entries.Remove(key)
			c.misses.Add(1)
			return nil, false
		}
		payload = decompressed
	}

	c.hits.Add(1)
	return payload, true
}

// Set stores payload under key for the given lifetime. A non-positive
// TTL drops the entry silently.
func (c *Cache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	e := entry{payload: payload, expiresAt: time.Now().Add(ttl)}
	if c.compressionThreshold > 0 && len(payload) > c.compressionThreshold {
		compressed, err := compress(payload)
		if err == nil && len(compressed) < len(payload) {
			e.payload = compressed
			e.compressed = true
		}
	}

	c.entries.Add(key, e)
}

// Stats reports hit and miss counters.
func (c *Cache) Stats() driven.CacheStats {
	return driven.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}

// Close drops all entries.
func (c *Cache) Close() error {
	c.entries.Purge()
	return nil
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
