// Package otel publishes goVault engine metrics as OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per KDF latency bucket, all fed by a single
// callback that reads [goVault.Engine.MetricsSnapshot]. The caller owns the
// MeterProvider.
package otel
