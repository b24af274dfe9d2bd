// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - HTTP: in-flight gauge, request counts and latency by canonical route
//   - Engine: calculation counts by outcome and round-trip latency
//   - Streaming: WebSocket connections and leaves streamed
//   - Runs: population run cache hits and misses
//
// Collectors are registered on a private registry exposed by Handler so the
// default Go registry stays untouched in tests.
package metrics
