// Package services defines shared utilities consumed by queue consumers and
// the daemon's transports.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, grouping keys, consumer IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and Retryable which
//     decides whether a failed item is resubmitted or dropped.
package services
