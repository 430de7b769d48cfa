// Command sessionq is the CLI for the sessionq coordination queue.
//
// It runs the daemon in the foreground ("sessionq daemon"), talks to a
// running daemon over its Unix socket (submit, claim, finalize, count, list,
// journal, status), drives a local worker pool that executes a shell command
// per claimed item ("sessionq consume"), and exercises an in-process queue
// with synthetic load ("sessionq simulate").
package main
