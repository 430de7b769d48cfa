package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"sessionq/internal/queue"
	"sessionq/internal/services"
)

// Exit codes from sysexits.h that a command can use to classify its failure.
const (
	exitDataErr  = 65
	exitNoInput  = 66
	exitTempFail = 75
	exitConfig   = 78
)

// waitDelay bounds how long output copying may outlive a killed command.
const waitDelay = 500 * time.Millisecond

// CommandHandler runs a shell command once per claimed item. The payload is
// written to the command's stdin and the item is described by
// SESSIONQ_ITEM_ID, SESSIONQ_ITEM_KEY, and SESSIONQ_CONSUMER_ID.
type CommandHandler struct {
	Command string
	// Shell defaults to /bin/sh.
	Shell string
	// Timeout bounds a single run; zero means no limit.
	Timeout time.Duration
	// Output receives each stdout/stderr line. Nil discards output.
	Output func(item queue.Item, line string)
}

// Handle implements Handler.
func (h CommandHandler) Handle(ctx context.Context, item queue.Item) error {
	command := strings.TrimSpace(h.Command)
	if command == "" {
		return services.Wrap(services.ErrConfiguration, "worker", "run command", "no command configured", nil)
	}
	shell := h.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command) //nolint:gosec
	consumerID, _ := services.ConsumerIDFromContext(ctx)
	cmd.Env = append(os.Environ(),
		"SESSIONQ_ITEM_ID="+item.ID,
		"SESSIONQ_ITEM_KEY="+item.Key,
		"SESSIONQ_CONSUMER_ID="+consumerID,
	)
	cmd.Stdin = bytes.NewReader(item.Payload)

	out := &lineWriter{emit: func(line string) {
		if h.Output != nil {
			h.Output(item, line)
		}
	}}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	out.flush()
	return classifyExit(ctx, err)
}

// lineWriter splits command output into lines. Stdout and stderr share one
// writer, so writes are serialized.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		w.emit(strings.TrimRight(string(w.buf[:idx]), "\r"))
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
}

func classifyExit(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "worker", "run command", "command timed out", err)
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return services.Wrap(services.ErrExternalTool, "worker", "run command", "", err)
	}
	code := exitErr.ExitCode()
	message := fmt.Sprintf("exit status %d", code)
	switch code {
	case exitDataErr:
		return services.Wrap(services.ErrValidation, "worker", "run command", message, nil)
	case exitNoInput:
		return services.Wrap(services.ErrNotFound, "worker", "run command", message, nil)
	case exitConfig:
		return services.Wrap(services.ErrConfiguration, "worker", "run command", message, nil)
	case exitTempFail:
		return services.Wrap(services.ErrTransient, "worker", "run command", message, nil)
	default:
		return services.Wrap(services.ErrExternalTool, "worker", "run command", message, nil)
	}
}
