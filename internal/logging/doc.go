// Package logging assembles structured slog loggers and formatting helpers used
// across sessionq.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so consumer code can tag log
// lines with item IDs, grouping keys, consumer IDs, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
