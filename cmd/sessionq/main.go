package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"sessionq/internal/services"
)

// Exit statuses follow sysexits.h so scripts can tell a missing daemon from
// a bad configuration.
const (
	exitFailure     = 1
	exitUnavailable = 69
	exitConfig      = 78
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errDaemonUnavailable):
		return exitUnavailable
	case errors.Is(err, services.ErrConfiguration):
		return exitConfig
	default:
		return exitFailure
	}
}
