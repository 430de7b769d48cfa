// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates queue and journal models into transport-friendly
// DTOs so the CLI and HTTP clients never couple to internal types.
//
// # Key Types
//
// QueueItem: a pending item with its claim state (in flight, consumer, claim
// time).
//
// QueueStats: pending/in-flight/key gauges plus lifetime operation counters.
//
// DaemonStatus: runtime paths, queue stats, journal health, and directory
// checks.
//
// JournalEvent: one audit record.
//
// # Service
//
// QueueService executes queue operations and returns DTOs. Both the IPC
// server and the HTTP handlers call it so the two transports stay identical.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Payloads pass through as json.RawMessage and are never interpreted.
package api
