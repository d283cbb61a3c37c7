// Package audit delivers audit entries to sinks off the request path.
//
// # Components
//
//   - [Sink] is implemented by channel, JSON-writer, store-backed and no-op sinks.
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full behavior.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which
// entries to emit; the Engine emits exactly one entry per transition.
//
// # What this package must NOT do
//
//   - Filter or suppress entries based on business logic.
//   - Return sink failures to the emitter.
//   - Import the root staysafe package.
package audit
