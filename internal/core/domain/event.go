package domain

import "time"

// EventKind represents the kind of filesystem change.
type EventKind int

const (
	// EventCreated indicates a new file.
	EventCreated EventKind = iota

	// EventModified indicates a changed file.
	EventModified

	// EventDeleted indicates a removed file.
	EventDeleted
)

// String returns the string representation.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return unknownDescription
	}
}

// WatchEvent is a transient filesystem change observation.
// Events are consumed and discarded after debouncing; they are
// never persisted. Multiple events for the same path within the
// debounce window collapse into one, keeping the last kind.
type WatchEvent struct {
	// Path is the affected file.
	Path string

	// Kind is the kind of change.
	Kind EventKind

	// ObservedAt is when the event was captured.
	ObservedAt time.Time
}
