package logging

import (
	"context"
	"log/slog"
)

// levelCloner is implemented by handlers that can swap their minimum level
// without stacking another wrapper.
type levelCloner interface {
	CloneWithLevel(slog.Level) slog.Handler
}

// minLevelHandler drops records below min before they reach next. next is
// expected to run at the most verbose level any component needs.
type minLevelHandler struct {
	next slog.Handler
	min  slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{next: h.next.WithGroup(name), min: h.min}
}

func (h minLevelHandler) CloneWithLevel(level slog.Level) slog.Handler {
	return minLevelHandler{next: h.next, min: level}
}

// WithLevelOverride returns logger with its minimum level replaced by level.
// Attributes already bound to logger are kept.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	handler := logger.Handler()
	if cloner, ok := handler.(levelCloner); ok {
		return slog.New(cloner.CloneWithLevel(level))
	}
	return slog.New(minLevelHandler{next: handler, min: level})
}

// ForComponent tags logger with component and applies the matching entry of
// overrides, if any, as that component's minimum level.
func ForComponent(logger *slog.Logger, component string, overrides map[string]string) *slog.Logger {
	return ApplyOverride(NewComponentLogger(logger, component), component, overrides)
}

// ApplyOverride applies the override for component without tagging the
// logger, for packages that add their own component attribute.
func ApplyOverride(logger *slog.Logger, component string, overrides map[string]string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	level, ok := overrides[component]
	if !ok {
		return logger
	}
	return WithLevelOverride(logger, ParseLevel(level))
}
