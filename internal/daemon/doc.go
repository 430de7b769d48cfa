// Package daemon coordinates the long-running sessionq process.
//
// It owns the in-memory coordination queue, wires the audit journal recorder
// in as the queue observer, and enforces single-instance execution with a
// flock-based lock plus PID file. The daemon also runs journal and log
// retention, and optionally serves the HTTP API on the configured bind
// address.
//
// Transport-specific code (JSON-RPC, HTTP handlers) goes through the shared
// api.QueueService so both surfaces report identical results.
package daemon
