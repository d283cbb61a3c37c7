// Package metrics provides lock-free counters and a latency histogram for
// the authentication engine.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The histogram uses 8 fixed buckets (≤5ms … +Inf). Both are
// allocation-free on the write path.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshots. Export to Prometheus and
// OpenTelemetry lives in metrics/export/ and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import staysafe or any sibling package.
//   - Expose global metric registries.
package metrics
