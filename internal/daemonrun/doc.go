// Package daemonrun runs the sessionq daemon in the foreground: per-run log
// file, daemon lifecycle, and the IPC socket, torn down on SIGINT/SIGTERM.
package daemonrun
