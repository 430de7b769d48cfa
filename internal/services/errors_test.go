package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"sessionq/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "consume", "exec", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"consume", "exec", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		label     string
	}{
		{name: "nil", err: nil, retryable: false, label: ""},
		{name: "plain", err: errors.New("io"), retryable: true, label: "transient"},
		{name: "transient", err: services.Wrap(services.ErrTransient, "worker", "handle", "flaky", nil), retryable: true, label: "transient"},
		{name: "timeout", err: services.Wrap(services.ErrTimeout, "worker", "handle", "slow", nil), retryable: true, label: "timeout"},
		{name: "tool", err: services.Wrap(services.ErrExternalTool, "consume", "exec", "exit 1", nil), retryable: true, label: "external_tool"},
		{name: "validation", err: services.Wrap(services.ErrValidation, "worker", "decode", "bad payload", nil), retryable: false, label: "validation"},
		{name: "configuration", err: fmt.Errorf("outer: %w", services.ErrConfiguration), retryable: false, label: "configuration"},
		{name: "not found", err: services.ErrNotFound, retryable: false, label: "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.retryable {
				t.Fatalf("Retryable = %v, want %v", got, tc.retryable)
			}
			if got := services.Classify(tc.err); got != tc.label {
				t.Fatalf("Classify = %q, want %q", got, tc.label)
			}
		})
	}
}
