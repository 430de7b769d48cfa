package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestJoinHandlersCollapses(t *testing.T) {
	if _, ok := joinHandlers(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := joinHandlers(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(joinHandlers(infoHandler, debugHandler))
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee enabled for debug when one handler accepts it")
	}
	logger.Debug("claim scan", slog.Int("pending", 3))
	logger.Info("item claimed", ItemID("a"))

	if strings.Contains(infoBuf.String(), "claim scan") {
		t.Fatalf("info handler received debug record: %q", infoBuf.String())
	}
	if !strings.Contains(infoBuf.String(), "item claimed") {
		t.Fatalf("info handler missing info record: %q", infoBuf.String())
	}
	for _, want := range []string{"claim scan", "item claimed"} {
		if !strings.Contains(debugBuf.String(), want) {
			t.Fatalf("debug handler missing %q: %q", want, debugBuf.String())
		}
	}
}

func TestTeeHandlerWithAttrsReachesAllHandlers(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(joinHandlers(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)).With(slog.String(FieldComponent, "queue")).WithGroup("stats")
	logger.Info("snapshot", slog.Int("pending", 2))

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		out := buf.String()
		if !strings.Contains(out, `"component":"queue"`) || !strings.Contains(out, `"stats":{"pending":2}`) {
			t.Fatalf("%s handler output missing attrs: %q", name, out)
		}
	}
}

type failingHandler struct{ err error }

func (f failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return f }
func (f failingHandler) WithGroup(string) slog.Handler             { return f }

func TestTeeHandlerJoinsErrors(t *testing.T) {
	first := errors.New("disk full")
	second := errors.New("pipe closed")
	var buf bytes.Buffer
	h := joinHandlers(failingHandler{first}, slog.NewJSONHandler(&buf, nil), failingHandler{second})

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "finalize", 0))
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both handler errors, got %v", err)
	}
	if !strings.Contains(buf.String(), "finalize") {
		t.Fatalf("healthy handler skipped: %q", buf.String())
	}
}
