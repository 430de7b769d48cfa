// Package queue hands work items to concurrent consumers while guaranteeing
// that items sharing a grouping key are never in flight twice.
//
// The Queue owns two pieces of state: the pending items keyed by id (kept in
// submission order) and the set of keys currently claimed by a consumer. A
// single mutex guards both, so Submit, Claim, and Finalize are each one
// indivisible step. Claim never blocks; an empty result is a normal outcome
// and callers decide how to back off.
//
// Claimed items stay pending until Finalize removes them, which is why Count
// includes in-flight work. Nothing expires: an item that is claimed and never
// finalized blocks its key until the process exits.
//
// Treat this package as the single source of truth for claim semantics. The
// journal, worker pool, daemon, and CLI only observe or drive these four
// operations.
package queue
