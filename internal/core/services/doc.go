// Package services contains the core business logic, free of
// infrastructure concerns.
//
// Services implement the driving ports and depend only on driven port
// interfaces plus the domain package. Wiring happens in cmd/ferret.
//
//   - BackendManager: priority-ordered embedding with retries and fallback
//   - SearchService: hybrid search with caching, rate and concurrency limits
//   - IngestService: chunk, embed, and index documents with bounded parallelism
//   - StatusService: aggregated health surface for CLI and MCP
package services
