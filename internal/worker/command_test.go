package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sessionq/internal/queue"
	"sessionq/internal/services"
	"sessionq/internal/worker"
)

func TestCommandHandlerPassesItemToCommand(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	h := worker.CommandHandler{
		Command: `printf '%s|%s|%s|' "$SESSIONQ_ITEM_ID" "$SESSIONQ_ITEM_KEY" "$SESSIONQ_CONSUMER_ID"; cat; echo`,
		Output: func(_ queue.Item, line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	}
	ctx := services.WithConsumerID(context.Background(), "w-1")
	if err := h.Handle(ctx, queue.Item{ID: "a", Key: "x", Payload: []byte(`{"n":1}`)}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(lines) != 1 || lines[0] != `a|x|w-1|{"n":1}` {
		t.Fatalf("unexpected output %q", lines)
	}
}

func TestCommandHandlerClassifiesExitCodes(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		marker    error
		retryable bool
	}{
		{"data error", "exit 65", services.ErrValidation, false},
		{"no input", "exit 66", services.ErrNotFound, false},
		{"config", "exit 78", services.ErrConfiguration, false},
		{"tempfail", "exit 75", services.ErrTransient, true},
		{"generic", "exit 1", services.ErrExternalTool, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := worker.CommandHandler{Command: tt.command}.Handle(context.Background(), queue.Item{ID: "a"})
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if services.Retryable(err) != tt.retryable {
				t.Fatalf("Retryable(%v) = %v, want %v", err, !tt.retryable, tt.retryable)
			}
		})
	}
}

func TestCommandHandlerTimeout(t *testing.T) {
	h := worker.CommandHandler{Command: "sleep 5", Timeout: 50 * time.Millisecond}
	start := time.Now()
	err := h.Handle(context.Background(), queue.Item{ID: "a"})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("command was not killed at the timeout")
	}
}

func TestCommandHandlerRequiresCommand(t *testing.T) {
	err := worker.CommandHandler{Command: "  "}.Handle(context.Background(), queue.Item{})
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "no command") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
