package api

import (
	"fmt"
	"time"

	"sessionq/internal/journal"
	"sessionq/internal/queue"
)

// FromEntry converts a queue entry to its API representation.
func FromEntry(entry queue.Entry) QueueItem {
	dto := QueueItem{
		ID:          entry.Item.ID,
		Key:         entry.Item.Key,
		Payload:     entry.Item.Payload,
		SubmittedAt: formatTime(entry.SubmittedAt),
		InFlight:    entry.InFlight,
		ConsumerID:  entry.ConsumerID,
		ClaimedAt:   formatTime(entry.ClaimedAt),
	}
	return dto
}

// FromEntries converts a snapshot into API DTOs, preserving order.
func FromEntries(entries []queue.Entry) []QueueItem {
	out := make([]QueueItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// ToItem converts a QueueItem back into a queue item.
func (q QueueItem) ToItem() queue.Item {
	return queue.Item{ID: q.ID, Key: q.Key, Payload: q.Payload}
}

// ToItem converts the request into a queue item.
func (r SubmitRequest) ToItem() queue.Item {
	return queue.Item{ID: r.ID, Key: r.Key, Payload: r.Payload}
}

// FromStats converts queue statistics.
func FromStats(stats queue.Stats) QueueStats {
	return QueueStats{
		Pending:        stats.Pending,
		InFlight:       stats.InFlight,
		Keys:           stats.Keys,
		Submitted:      stats.Submitted,
		Overwritten:    stats.Overwritten,
		Claimed:        stats.Claimed,
		EmptyClaims:    stats.EmptyClaims,
		Finalized:      stats.Finalized,
		FinalizeMisses: stats.FinalizeMisses,
	}
}

// FromRecords converts journal records.
func FromRecords(records []journal.Record) []JournalEvent {
	out := make([]JournalEvent, 0, len(records))
	for _, rec := range records {
		out = append(out, JournalEvent{
			ID:         rec.ID,
			Kind:       string(rec.Kind),
			ItemID:     rec.ItemID,
			Key:        rec.Key,
			ConsumerID: rec.ConsumerID,
			Overwrote:  rec.Overwrote,
			At:         formatTime(rec.At),
		})
	}
	return out
}

// Filter converts the request into a journal filter.
func (r JournalRequest) Filter() (journal.Filter, error) {
	filter := journal.Filter{
		ItemID:     r.ItemID,
		Key:        r.Key,
		ConsumerID: r.ConsumerID,
		Limit:      r.Limit,
	}
	switch kind := queue.EventKind(r.Kind); kind {
	case "":
	case queue.EventSubmit, queue.EventClaim, queue.EventFinalize:
		filter.Kind = kind
	default:
		return journal.Filter{}, fmt.Errorf("%w %q (want submit, claim, or finalize)", ErrInvalidKind, r.Kind)
	}
	return filter, nil
}

// ParseTime parses an API timestamp. Empty input yields the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateTimeFormat, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
