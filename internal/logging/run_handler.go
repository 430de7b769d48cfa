package logging

import (
	"context"
	"log/slog"
)

// runIDHandler stamps every record with the run identifier.
type runIDHandler struct {
	base  slog.Handler
	runID string
}

// WithRunID returns a logger whose records all carry run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil || runID == "" {
		return logger
	}
	return slog.New(&runIDHandler{base: logger.Handler(), runID: runID})
}

func (h *runIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *runIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldRunID, h.runID))
	return h.base.Handle(ctx, record)
}

func (h *runIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runIDHandler{base: h.base.WithAttrs(attrs), runID: h.runID}
}

func (h *runIDHandler) WithGroup(name string) slog.Handler {
	return &runIDHandler{base: h.base.WithGroup(name), runID: h.runID}
}

// CloneWithLevel forwards level overrides to the wrapped handler so component
// overrides still apply underneath the run id.
func (h *runIDHandler) CloneWithLevel(level slog.Level) slog.Handler {
	if cloner, ok := h.base.(levelCloner); ok {
		return &runIDHandler{base: cloner.CloneWithLevel(level), runID: h.runID}
	}
	return &runIDHandler{base: minLevelHandler{next: h.base, min: level}, runID: h.runID}
}
