// Package otel publishes the engine counters through OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and
// one Int64ObservableGauge per histogram bucket. A single callback reads
// [staysafe.Engine.MetricsSnapshot] on each collection cycle. Callers own
// the MeterProvider.
package otel
