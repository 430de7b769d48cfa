package daemon_test

import (
	"context"
	"os"
	"testing"
	"time"

	"sessionq/internal/api"
	"sessionq/internal/daemon"
	"sessionq/internal/logging"
	"sessionq/internal/queue"
	"sessionq/internal/testsupport"
)

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.RunID == "" || status.RunID != d.RunID() {
		t.Fatalf("unexpected run id %q", status.RunID)
	}
	if status.StartedAt == "" {
		t.Fatal("expected startedAt to be set")
	}

	pid, err := daemon.ReadPID(cfg.PIDPath())
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), pid)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutJournal())
	first, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to be refused")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonStatusReportsQueueAndJournal(t *testing.T) {
	d := newDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	q := d.Queue()
	q.Submit(queue.Item{ID: "a", Key: "x"})
	q.Submit(queue.Item{ID: "b", Key: "x"})
	if _, ok := q.Claim("w1"); !ok {
		t.Fatal("expected claim")
	}
	q.Finalize("w1", "a")

	status := d.Status(ctx)
	if status.Queue.Pending != 1 || status.Queue.Submitted != 2 || status.Queue.Finalized != 1 {
		t.Fatalf("unexpected queue stats %+v", status.Queue)
	}
	if !status.Journal.Enabled || status.Journal.Path == "" {
		t.Fatalf("expected journal enabled, got %+v", status.Journal)
	}
	if len(status.Directories) == 0 {
		t.Fatal("expected directory checks")
	}
	for _, dir := range status.Directories {
		if !dir.Ok {
			t.Fatalf("directory check failed: %+v", dir)
		}
	}
	if status.APIBind != "" {
		t.Fatalf("expected API disabled, got %q", status.APIBind)
	}

	// Recorder writes in the background; poll until the four events land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if status := d.Status(ctx); status.Journal.Records == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("journal did not record events, status %+v", d.Status(ctx).Journal)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonWithoutJournal(t *testing.T) {
	d := newDaemon(t, testsupport.WithoutJournal())
	status := d.Status(context.Background())
	if status.Journal.Enabled {
		t.Fatalf("expected journal disabled, got %+v", status.Journal)
	}
	if status.Running {
		t.Fatal("daemon should not run before Start")
	}
	if _, err := d.Service().Journal(context.Background(), api.JournalRequest{Limit: 10}); err == nil {
		t.Fatal("expected journal query to fail when disabled")
	}
}

func TestReadPIDMissingFile(t *testing.T) {
	pid, err := daemon.ReadPID(t.TempDir() + "/missing.pid")
	if err != nil || pid != 0 {
		t.Fatalf("expected 0, nil; got %d, %v", pid, err)
	}
}
