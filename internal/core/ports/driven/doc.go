// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Document and chunk persistence
//   - SearchEngine: Full-text BM25 keyword search
//   - VectorIndex: Vector storage and top-K similarity search
//   - EmbeddingBackend: Generates vector embeddings (at least one,
//     or mock mode)
//   - Chunker: Splits documents into token windows
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ResultCache: Search result caching. A missing or failing cache
//     only costs latency, never correctness.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or watcher package
package driven
