package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferret-search/ferret/internal/core/domain"
)

func newCache(t *testing.T, cfg domain.CacheConfig) *Cache {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a payload", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 4})

		c.Set(ctx, "key", []byte("payload"), time.Minute)
		payload, ok := c.Get(ctx, "key")

		require.True(t, ok)
		assert.Equal(t, []byte("payload"), payload)
	})

	t.Run("missing key is a miss", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 4})

		_, ok := c.Get(ctx, "absent")

		assert.False(t, ok)
		assert.Equal(t, uint64(1), c.Stats().Misses)
	})

	t.Run("expired entries are evicted on access", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 4})

		c.Set(ctx, "key", []byte("payload"), time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		_, ok := c.Get(ctx, "key")
		assert.False(t, ok)
		assert.Zero(t, c.Stats().Entries)
	})

	t.Run("capacity evicts least recently used", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 2})

		c.Set(ctx, "a", []byte("1"), time.Minute)
		c.Set(ctx, "b", []byte("2"), time.Minute)
		c.Set(ctx, "c", []byte("3"), time.Minute)

		_, ok := c.Get(ctx, "a")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "c")
		assert.True(t, ok)
	})

	t.Run("large payloads are compressed transparently", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{
			MaxEntries:           4,
			CompressionThreshold: 64,
		})
		payload := []byte(strings.Repeat("searchable content ", 100))

		c.Set(ctx, "big", payload, time.Minute)

		stored, ok := c.entries.Get("big")
		require.True(t, ok)
		assert.True(t, stored.compressed)
		assert.Less(t, len(stored.payload), len(payload))

		roundTripped, ok := c.Get(ctx, "big")
		require.True(t, ok)
		assert.Equal(t, payload, roundTripped)
	})

	t.Run("small payloads stay uncompressed", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{
			MaxEntries:           4,
			CompressionThreshold: 64,
		})

		c.Set(ctx, "small", []byte("tiny"), time.Minute)

		stored, ok := c.entries.Get("small")
		require.True(t, ok)
		assert.False(t, stored.compressed)
	})

	t.Run("non-positive ttl drops the entry", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 4})

		c.Set(ctx, "key", []byte("payload"), 0)

		_, ok := c.Get(ctx, "key")
		assert.False(t, ok)
	})

	t.Run("stats track hits and misses", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 4})
		c.Set(ctx, "key", []byte("payload"), time.Minute)

		c.Get(ctx, "key")
		c.Get(ctx, "key")
		c.Get(ctx, "absent")

		stats := c.Stats()
		assert.Equal(t, uint64(2), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.InDelta(t, 2.0/3.0, stats.HitRate(), 0.001)
	})

	t.Run("close purges all entries", func(t *testing.T) {
		c := newCache(t, domain.CacheConfig{MaxEntries: 4})
		c.Set(ctx, "key", []byte("payload"), time.Minute)

		require.NoError(t, c.Close())

		assert.Zero(t, c.Stats().Entries)
	})
}
