package driven

import (
	"context"
	"time"
)

// ResultCache fronts both search modes with TTL-keyed entries.
// The cache is best-effort and never a source of truth: it may be
// cleared at any time without correctness impact. Implementations
// report failures through Get's ok result, not errors, so a cache
// outage degrades to direct computation.
type ResultCache interface {
	// Get returns the cached payload for key, or ok=false on a
	// miss, an expired entry, or any backend failure.
	Get(ctx context.Context, key string) (payload []byte, ok bool)

	// Set stores a payload under key with the given lifetime.
	// Oversized payloads may be compressed by the implementation.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)

	// Stats reports hit/miss counters for the health surface.
	Stats() CacheStats

	// Close releases resources.
	Close() error
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	// Hits counts lookups served from cache.
	Hits uint64

	// Misses counts lookups that fell through to computation.
	Misses uint64

	// Entries is the current entry count.
	Entries int
}

// HitRate returns the fraction of lookups served from cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
