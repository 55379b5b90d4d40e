// Package domain defines the core business entities for Ferret.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An indexed document with metadata
//   - Chunk: A searchable token window within a document
//   - WatchEvent: A transient filesystem change observation
//   - SearchResult: A ranked search hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
