// Package telemetry groups the operational observability of the API.
//
// Tracing is configured by internal/platform/otel and covers engine calls.
// Prometheus metrics live in telemetry/metrics and cover the HTTP surface,
// engine round-trips, WebSocket streaming and the run cache.
package telemetry
