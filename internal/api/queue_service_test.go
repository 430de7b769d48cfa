package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sessionq/internal/api"
	"sessionq/internal/journal"
	"sessionq/internal/queue"
)

type stubJournal struct {
	filter  journal.Filter
	records []journal.Record
	err     error
}

func (s *stubJournal) List(_ context.Context, filter journal.Filter) ([]journal.Record, error) {
	s.filter = filter
	return s.records, s.err
}

func TestQueueServiceRoundTrip(t *testing.T) {
	svc := api.NewQueueService(queue.New(), nil)

	if resp := svc.Submit(api.SubmitRequest{ID: "a", Key: "x", Payload: json.RawMessage(`{"n":1}`)}); resp.Count != 1 {
		t.Fatalf("expected count 1, got %d", resp.Count)
	}
	svc.Submit(api.SubmitRequest{ID: "b", Key: "x"})

	claim := svc.Claim(api.ClaimRequest{ConsumerID: "w1"})
	if !claim.Found || claim.Item == nil || claim.Item.ID != "a" {
		t.Fatalf("unexpected claim: %+v", claim)
	}
	if claim.Item.ConsumerID != "w1" || !claim.Item.InFlight || claim.Item.ClaimedAt == "" {
		t.Fatalf("expected claim metadata, got %+v", claim.Item)
	}
	if string(claim.Item.Payload) != `{"n":1}` {
		t.Fatalf("unexpected payload %s", claim.Item.Payload)
	}
	if empty := svc.Claim(api.ClaimRequest{ConsumerID: "w2"}); empty.Found || empty.Item != nil {
		t.Fatalf("expected empty claim, got %+v", empty)
	}

	list := svc.List()
	if len(list.Items) != 2 || !list.Items[0].InFlight || list.Items[1].InFlight {
		t.Fatalf("unexpected list: %+v", list.Items)
	}
	if list.Stats.Pending != 2 || list.Stats.InFlight != 1 || list.Stats.EmptyClaims != 1 {
		t.Fatalf("unexpected stats: %+v", list.Stats)
	}

	if resp := svc.Finalize(api.FinalizeRequest{ConsumerID: "w1", ItemID: "a"}); resp.Count != 1 {
		t.Fatalf("expected count 1 after finalize, got %d", resp.Count)
	}
	if resp := svc.Finalize(api.FinalizeRequest{ConsumerID: "w1", ItemID: "a"}); resp.Count != 1 {
		t.Fatalf("expected idempotent finalize, got %d", resp.Count)
	}
	if svc.Count().Count != 1 {
		t.Fatalf("unexpected count %d", svc.Count().Count)
	}
}

func TestQueueServiceJournal(t *testing.T) {
	disabled := api.NewQueueService(queue.New(), nil)
	if _, err := disabled.Journal(context.Background(), api.JournalRequest{}); !errors.Is(err, api.ErrJournalDisabled) {
		t.Fatalf("expected ErrJournalDisabled, got %v", err)
	}

	at := time.Date(2026, 5, 6, 7, 8, 9, 123000000, time.UTC)
	stub := &stubJournal{records: []journal.Record{
		{ID: 7, Kind: queue.EventClaim, ItemID: "a", Key: "x", ConsumerID: "w1", At: at},
	}}
	svc := api.NewQueueService(queue.New(), stub)
	resp, err := svc.Journal(context.Background(), api.JournalRequest{Key: "x", Kind: "claim", Limit: 5})
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	if stub.filter.Key != "x" || stub.filter.Kind != queue.EventClaim || stub.filter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", stub.filter)
	}
	if len(resp.Events) != 1 || resp.Events[0].At != "2026-05-06T07:08:09.123Z" || resp.Events[0].Kind != "claim" {
		t.Fatalf("unexpected events: %+v", resp.Events)
	}

	if _, err := svc.Journal(context.Background(), api.JournalRequest{Kind: "explode"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	stub.err = errors.New("disk")
	if _, err := svc.Journal(context.Background(), api.JournalRequest{}); err == nil {
		t.Fatal("expected journal error to surface")
	}
}

func TestFromEntriesPreservesOrderAndTimes(t *testing.T) {
	submitted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []queue.Entry{
		{Item: queue.Item{ID: "b", Key: "y"}, SubmittedAt: submitted},
		{Item: queue.Item{ID: "a", Key: "x"}, SubmittedAt: submitted, InFlight: true, ConsumerID: "w", ClaimedAt: submitted.Add(time.Second)},
	}
	items := api.FromEntries(entries)
	if len(items) != 2 || items[0].ID != "b" || items[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if items[0].ClaimedAt != "" {
		t.Fatalf("expected empty claim time for waiting item, got %q", items[0].ClaimedAt)
	}
	parsed, err := api.ParseTime(items[1].ClaimedAt)
	if err != nil || !parsed.Equal(submitted.Add(time.Second)) {
		t.Fatalf("claim time did not round trip: %v %v", parsed, err)
	}
	if item := items[1].ToItem(); item.ID != "a" || item.Key != "x" {
		t.Fatalf("unexpected ToItem: %+v", item)
	}
}

func TestQueueServiceClaimUsesQueueStamp(t *testing.T) {
	var tick int
	base := time.Date(2026, 4, 5, 6, 0, 0, 0, time.UTC)
	q := queue.New(queue.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	svc := api.NewQueueService(q, nil)
	svc.Submit(api.SubmitRequest{ID: "a", Key: "x"})

	claim := svc.Claim(api.ClaimRequest{ConsumerID: "w1"})
	if !claim.Found {
		t.Fatal("expected claim")
	}
	got, ok := svc.Get("a")
	if !ok {
		t.Fatal("expected a to be pending")
	}
	if claim.Item.ClaimedAt != got.ClaimedAt || claim.Item.SubmittedAt != got.SubmittedAt {
		t.Fatalf("claim %+v disagrees with stored entry %+v", claim.Item, got)
	}
	if claim.Item.SubmittedAt == "" || claim.Item.ClaimedAt == claim.Item.SubmittedAt {
		t.Fatalf("expected distinct submit and claim stamps, got %+v", claim.Item)
	}
	if _, ok := svc.Get("missing"); ok {
		t.Fatal("expected unknown id to be absent")
	}
}
