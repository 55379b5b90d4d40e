package driving

import "context"

// WatcherState names a stage in the watcher lifecycle.
// Transitions: Stopped -> Starting -> Watching -> Draining -> Stopped.
type WatcherState string

// Watcher lifecycle states.
const (
	// WatcherStopped means no events are observed.
	WatcherStopped WatcherState = "stopped"

	// WatcherStarting means the initial full scan is running.
	WatcherStarting WatcherState = "starting"

	// WatcherWatching means filesystem events are being captured.
	WatcherWatching WatcherState = "watching"

	// WatcherDraining means shutdown has begun; no new events are
	// accepted but queued items are still being processed.
	WatcherDraining WatcherState = "draining"
)

// WatcherStatus is a snapshot of the watcher's health surface.
type WatcherStatus struct {
	// State is the current lifecycle stage.
	State WatcherState

	// QueueDepths maps event kind to pending queue length.
	QueueDepths map[string]int

	// Dropped counts queue entries shed under backpressure.
	Dropped uint64

	// Processed counts queue items handed to the ingestion pipeline.
	Processed uint64

	// Abandoned counts items not drained before the shutdown deadline.
	Abandoned uint64
}

// Watcher observes a file tree and keeps the index synchronised.
type Watcher interface {
	// Start performs the initial full scan and begins capturing
	// filesystem events. It returns once watching is established;
	// processing continues in the background.
	Start(ctx context.Context) error

	// Stop drains in-flight queue items up to the configured
	// deadline, then stops. Items not drained are logged and counted
	// as abandoned.
	Stop(ctx context.Context) error

	// Status returns a snapshot of the watcher's state and queues.
	Status() WatcherStatus
}
