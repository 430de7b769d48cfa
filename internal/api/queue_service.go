package api

import (
	"context"
	"errors"

	"sessionq/internal/journal"
	"sessionq/internal/queue"
)

// ErrJournalDisabled is returned by journal queries when no journal is configured.
var ErrJournalDisabled = errors.New("journal disabled")

// ErrInvalidKind is returned when a journal query names an unknown event kind.
var ErrInvalidKind = errors.New("unknown event kind")

// JournalReader abstracts journal queries needed by the API.
type JournalReader interface {
	List(ctx context.Context, filter journal.Filter) ([]journal.Record, error)
}

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	queue   *queue.Queue
	journal JournalReader
}

// NewQueueService constructs a QueueService. journal may be nil.
func NewQueueService(q *queue.Queue, journal JournalReader) *QueueService {
	if q == nil {
		return nil
	}
	return &QueueService{queue: q, journal: journal}
}

// Submit adds or overwrites an item.
func (s *QueueService) Submit(req SubmitRequest) SubmitResponse {
	s.queue.Submit(req.ToItem())
	return SubmitResponse{Count: s.queue.Count()}
}

// Claim hands the next claimable item to req.ConsumerID.
func (s *QueueService) Claim(req ClaimRequest) ClaimResponse {
	entry, ok := s.queue.ClaimEntry(req.ConsumerID)
	if !ok {
		return ClaimResponse{}
	}
	dto := FromEntry(entry)
	return ClaimResponse{Found: true, Item: &dto}
}

// Get returns one pending item by id.
func (s *QueueService) Get(id string) (QueueItem, bool) {
	entry, ok := s.queue.Get(id)
	if !ok {
		return QueueItem{}, false
	}
	return FromEntry(entry), true
}

// Finalize removes an item and releases its key. Unknown ids are a no-op.
func (s *QueueService) Finalize(req FinalizeRequest) FinalizeResponse {
	s.queue.Finalize(req.ConsumerID, req.ItemID)
	return FinalizeResponse{Count: s.queue.Count()}
}

// Count returns the number of pending items.
func (s *QueueService) Count() CountResponse {
	return CountResponse{Count: s.queue.Count()}
}

// List returns pending items in insertion order with current stats.
func (s *QueueService) List() QueueListResponse {
	return QueueListResponse{
		Items: FromEntries(s.queue.Snapshot()),
		Stats: s.Stats(),
	}
}

// Stats returns queue statistics.
func (s *QueueService) Stats() QueueStats {
	return FromStats(s.queue.Stats())
}

// Journal queries the audit journal.
func (s *QueueService) Journal(ctx context.Context, req JournalRequest) (JournalResponse, error) {
	if s.journal == nil {
		return JournalResponse{}, ErrJournalDisabled
	}
	filter, err := req.Filter()
	if err != nil {
		return JournalResponse{}, err
	}
	records, err := s.journal.List(ctx, filter)
	if err != nil {
		return JournalResponse{}, err
	}
	return JournalResponse{Events: FromRecords(records)}, nil
}
