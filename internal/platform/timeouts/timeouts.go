// Package timeouts defines the durations shared by the HTTP surface and the
// engine client.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// EngineRequest caps a single calculation round-trip to the rule engine.
// Population runs are the slow path; WebSocket leaves are usually far below.
const EngineRequest = 60 * time.Second

// MetadataLoad caps reading parameters.json or variables.json from disk.
const MetadataLoad = 30 * time.Second
