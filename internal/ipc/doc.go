// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response types of the
// "Sessionq" RPC service. Queue payloads reuse the api DTOs so the HTTP and
// RPC surfaces stay identical. The client honours context cancellation on
// every call and satisfies worker.Source, so a remote worker pool can consume
// from a running daemon exactly as a local pool consumes from an in-process
// queue.
package ipc
