package ipc_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sessionq/internal/api"
	"sessionq/internal/config"
	"sessionq/internal/daemon"
	"sessionq/internal/ipc"
	"sessionq/internal/logging"
	"sessionq/internal/queue"
	"sessionq/internal/testsupport"
	"sessionq/internal/worker"
)

type harness struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	client *ipc.Client
}

func startServer(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return &harness{cfg: cfg, daemon: d, client: client}
}

func TestIPCServerClient(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	status, err := h.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.RunID != h.daemon.RunID() {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.SocketPath != h.cfg.SocketPath() {
		t.Fatalf("unexpected socket path %q", status.SocketPath)
	}

	for _, req := range []ipc.SubmitRequest{
		{ID: "a", Key: "x", Payload: []byte(`"first"`)},
		{ID: "b", Key: "x"},
		{ID: "c", Key: "y"},
	} {
		if _, err := h.client.SubmitItem(ctx, req); err != nil {
			t.Fatalf("Submit %s: %v", req.ID, err)
		}
	}

	claim, err := h.client.ClaimItem(ctx, "w1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !claim.Found || claim.Item.ID != "a" || string(claim.Item.Payload) != `"first"` {
		t.Fatalf("expected a, got %+v", claim)
	}

	item, ok, err := h.client.Claim(ctx, "w2")
	if err != nil || !ok || item.ID != "c" {
		t.Fatalf("expected c for w2, got %+v ok=%v err=%v", item, ok, err)
	}

	if _, ok, err := h.client.Claim(ctx, "w3"); err != nil || ok {
		t.Fatalf("expected empty claim, got ok=%v err=%v", ok, err)
	}

	count, err := h.client.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("expected count 3, got %d err=%v", count, err)
	}

	fin, err := h.client.FinalizeItem(ctx, "w1", "a")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if fin.Count != 2 {
		t.Fatalf("expected count 2, got %d", fin.Count)
	}
	// Unknown ids are a silent no-op.
	if err := h.client.Finalize(ctx, "w1", "missing"); err != nil {
		t.Fatalf("Finalize missing: %v", err)
	}

	list, err := h.client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Items) != 2 || list.Items[0].ID != "b" || list.Items[1].ID != "c" || !list.Items[1].InFlight {
		t.Fatalf("unexpected list %+v", list.Items)
	}
	if list.Stats.FinalizeMisses != 1 {
		t.Fatalf("expected one finalize miss, got %+v", list.Stats)
	}

	item, ok, err = h.client.Claim(ctx, "w1")
	if err != nil || !ok || item.ID != "b" {
		t.Fatalf("expected b after release, got %+v ok=%v err=%v", item, ok, err)
	}
}

func TestIPCJournal(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	if err := h.client.Submit(ctx, queue.Item{ID: "a", Key: "x"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, _, err := h.client.Claim(ctx, "w1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := h.client.Finalize(ctx, "w1", "a"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	var events []api.JournalEvent
	deadline := time.Now().Add(2 * time.Second)
	for len(events) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("journal has %d events, expected 3", len(events))
		}
		time.Sleep(10 * time.Millisecond)
		resp, err := h.client.Journal(ctx, ipc.JournalRequest{ItemID: "a"})
		if err != nil {
			t.Fatalf("Journal: %v", err)
		}
		events = resp.Events
	}
	if events[0].Kind != "finalize" || events[1].Kind != "claim" || events[2].Kind != "submit" {
		t.Fatalf("expected newest first, got %+v", events)
	}
	if events[1].ConsumerID != "w1" {
		t.Fatalf("expected claim by w1, got %+v", events[1])
	}

	if _, err := h.client.Journal(ctx, ipc.JournalRequest{Kind: "explode"}); !errors.Is(err, api.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestIPCJournalDisabled(t *testing.T) {
	h := startServer(t, testsupport.WithoutJournal())
	_, err := h.client.Journal(context.Background(), ipc.JournalRequest{})
	if !errors.Is(err, api.ErrJournalDisabled) {
		t.Fatalf("expected ErrJournalDisabled, got %v", err)
	}
}

func TestIPCClientHonoursContext(t *testing.T) {
	h := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.client.Count(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRemoteWorkerPoolDrainsDaemonQueue(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	const items = 20
	for i := 0; i < items; i++ {
		if err := h.client.Submit(ctx, queue.Item{ID: fmt.Sprintf("i-%d", i), Key: fmt.Sprintf("k-%d", i%3)}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	var handled atomic.Int32
	pool := worker.NewPool(h.client, worker.HandlerFunc(func(context.Context, queue.Item) error {
		handled.Add(1)
		return nil
	}), worker.Options{
		Consumers:       4,
		Prefix:          "remote",
		PollInterval:    time.Millisecond,
		MaxPollInterval: 5 * time.Millisecond,
		MaxAttempts:     1,
	})
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	t.Cleanup(pool.Stop)

	deadline := time.Now().Add(5 * time.Second)
	for h.daemon.Queue().Count() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("queue not drained, %d remaining", h.daemon.Queue().Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	pool.Stop()
	if got := handled.Load(); got != items {
		t.Fatalf("expected %d handled, got %d", items, got)
	}
	if stats := h.daemon.Queue().Stats(); stats.Finalized != items {
		t.Fatalf("expected %d finalized, got %+v", items, stats)
	}
}

func TestDialMissingSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := ipc.Dial(cfg.SocketPath()); err == nil {
		t.Fatal("expected dial error for missing socket")
	}
}

func TestClaimCancelledMidCallNeverStrandsKey(t *testing.T) {
	h := startServer(t)
	for i := range 50 {
		id := fmt.Sprintf("i-%d", i)
		h.daemon.Queue().Submit(queue.Item{ID: id, Key: id})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(time.Duration(i%5) * time.Microsecond)
			cancel()
		}()
		item, ok, err := h.client.Claim(ctx, "c1")
		cancel()

		stats := h.daemon.Queue().Stats()
		switch {
		case err != nil:
			if stats.InFlight != 0 {
				t.Fatalf("iteration %d: claim reported %v but daemon holds %d in flight", i, err, stats.InFlight)
			}
			h.daemon.Queue().Finalize("cleanup", id)
		case !ok || item.ID != id:
			t.Fatalf("iteration %d: expected %s, got %+v %v", i, id, item, ok)
		default:
			if err := h.client.Finalize(context.Background(), "c1", id); err != nil {
				t.Fatalf("iteration %d: finalize: %v", i, err)
			}
		}
		if got := h.daemon.Queue().Count(); got != 0 {
			t.Fatalf("iteration %d: expected empty queue, %d remain", i, got)
		}
	}
}
