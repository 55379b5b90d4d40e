package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Validation failures are surfaced immediately and never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendTransient indicates a retryable embedding backend
	// failure (timeout, connection reset, 5xx).
	ErrBackendTransient = errors.New("transient backend failure")

	// ErrBackendExhausted indicates every configured embedding
	// backend failed after exhausting its retries.
	ErrBackendExhausted = errors.New("all embedding backends exhausted")

	// ErrRateLimited indicates the caller exceeded the query rate
	// ceiling. Requests beyond the limit fail fast, never queue.
	ErrRateLimited = errors.New("rate limited")

	// ErrCapacity indicates the search concurrency pool stayed full
	// past the acquire timeout.
	ErrCapacity = errors.New("search capacity exhausted")

	// ErrCacheUnavailable indicates the result cache backend failed.
	// It is never propagated to searchers; the coordinator degrades
	// to direct computation.
	ErrCacheUnavailable = errors.New("result cache unavailable")

	// ErrStoreUnavailable indicates the vector store cannot be
	// reached. This escalates to a caller-visible failure.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrWatcherRunning indicates the watcher was started twice.
	ErrWatcherRunning = errors.New("watcher already running")

	// ErrWatcherStopped indicates an operation on a stopped watcher.
	ErrWatcherStopped = errors.New("watcher not running")
)
