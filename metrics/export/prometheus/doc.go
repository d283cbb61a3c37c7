// Package prometheus exposes the engine counters as a
// [prometheus.Collector].
//
// Counter names are prefixed staysafe_ and end in _total; the single
// histogram is staysafe_authenticate_latency_seconds. The collector reads
// [staysafe.Engine.MetricsSnapshot] on every scrape and never mutates the
// engine.
package prometheus
