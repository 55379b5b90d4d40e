// Package watcher keeps the index synchronised with a live file tree.
//
// It observes filesystem events through fsnotify, filters and debounces
// them, and drains bounded per-kind queues into the ingestion pipeline
// through a worker pool. The lifecycle is a state machine:
//
//	Stopped -> Starting -> Watching -> Draining -> Stopped
//
// Watching is only entered after the initial full scan of the tree has
// been enqueued, so a freshly started watcher converges to a complete
// index rather than only tracking deltas.
package watcher
