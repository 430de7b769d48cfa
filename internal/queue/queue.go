package queue

import (
	"log/slog"
	"sync"
	"time"

	"sessionq/internal/logging"
)

// Queue coordinates keyed work between producers and consumers. The zero value
// is not usable; construct with New.
type Queue struct {
	mu       sync.Mutex
	items    *itemStore
	sessions *sessionTracker
	stats    Stats

	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger attaches a logger for debug-level operation traces.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithObserver registers an observer for committed operations.
func WithObserver(observer Observer) Option {
	return func(q *Queue) {
		q.observer = observer
	}
}

// WithClock overrides the time source used for submission and claim stamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New constructs an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		items:    newItemStore(),
		sessions: newSessionTracker(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.NewComponentLogger(q.logger, "queue")
	return q
}

// Submit adds item to the queue. It always succeeds. Submitting an id that is
// already pending replaces the stored item in place, even while that id is in
// flight, and leaves the key's claim untouched.
func (q *Queue) Submit(item Item) {
	item = cloneItem(item)

	q.mu.Lock()
	defer q.mu.Unlock()

	at := q.now()
	overwrote := q.items.insert(item, at)
	q.stats.Submitted++
	if overwrote {
		q.stats.Overwritten++
		q.logger.Debug("pending item overwritten",
			logging.ItemID(item.ID),
			logging.ItemKey(item.Key),
			logging.Bool("in_flight", q.inFlight(item.ID)),
		)
	}
	q.emit(Event{Kind: EventSubmit, ItemID: item.ID, Key: item.Key, Overwrote: overwrote, At: at})
}

// Claim returns the earliest submitted item whose key is not claimed and marks
// that key claimed. Items already in flight are never handed out twice. The
// boolean is false when no item is eligible; that is a normal outcome and
// callers are expected to retry later. consumerID is recorded but does not
// influence selection.
func (q *Queue) Claim(consumerID string) (Item, bool) {
	entry, ok := q.ClaimEntry(consumerID)
	return entry.Item, ok
}

// ClaimEntry is Claim that also reports the submission and claim stamps the
// queue recorded, matching what Snapshot and Get show for the claim.
func (q *Queue) ClaimEntry(consumerID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var found *storedItem
	q.items.each(func(stored *storedItem) bool {
		if q.sessions.isActive(stored.item.Key) || q.inFlight(stored.item.ID) {
			return true
		}
		found = stored
		return false
	})
	if found == nil {
		q.stats.EmptyClaims++
		return Entry{}, false
	}

	at := q.now()
	q.sessions.activate(session{key: found.item.Key, itemID: found.item.ID, consumerID: consumerID, since: at})
	q.stats.Claimed++
	q.emit(Event{Kind: EventClaim, ItemID: found.item.ID, Key: found.item.Key, ConsumerID: consumerID, At: at})
	return q.entryFor(found), true
}

// Finalize removes itemID and releases its key so other items sharing the key
// become eligible. Unknown ids are ignored, which makes retries safe.
// consumerID is not validated against the claimant.
func (q *Queue) Finalize(consumerID, itemID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed, ok := q.items.remove(itemID)
	if !ok {
		q.stats.FinalizeMisses++
		q.logger.Debug("finalize ignored; item not pending",
			logging.ItemID(itemID),
			logging.ConsumerID(consumerID),
		)
		return
	}

	key := removed.item.Key
	if claim, held := q.sessions.claimOf(itemID); held {
		// An in-flight overwrite may have changed the item's key; release the
		// key it was claimed under.
		key = claim.key
		q.sessions.release(key)
	} else if holder, held := q.sessions.holder(key); held {
		q.logger.Debug("finalized item was not the key holder",
			logging.ItemID(itemID),
			logging.ItemKey(key),
			logging.String("holder_item_id", holder.itemID),
		)
	}
	q.stats.Finalized++
	q.emit(Event{Kind: EventFinalize, ItemID: itemID, Key: key, ConsumerID: consumerID, At: q.now()})
}

// Count returns the number of pending items, including those in flight.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.count()
}

// Get returns the pending item with id, in flight or not.
func (q *Queue) Get(id string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stored, ok := q.items.get(id)
	if !ok {
		return Entry{}, false
	}
	return q.entryFor(stored), true
}

// Snapshot lists pending items in scan order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := make([]Entry, 0, q.items.count())
	q.items.each(func(stored *storedItem) bool {
		entries = append(entries, q.entryFor(stored))
		return true
	})
	return entries
}

// entryFor copies stored and its claim, if any. Callers hold q.mu.
func (q *Queue) entryFor(stored *storedItem) Entry {
	entry := Entry{Item: cloneItem(stored.item), SubmittedAt: stored.submittedAt}
	if claim, ok := q.sessions.claimOf(stored.item.ID); ok {
		entry.InFlight = true
		entry.ConsumerID = claim.consumerID
		entry.ClaimedAt = claim.since
	}
	return entry
}

// Stats returns current sizes and lifetime counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.Pending = q.items.count()
	stats.InFlight = q.sessions.len()
	keys := make(map[string]struct{})
	q.items.each(func(stored *storedItem) bool {
		keys[stored.item.Key] = struct{}{}
		return true
	})
	stats.Keys = len(keys)
	return stats
}

func (q *Queue) inFlight(itemID string) bool {
	_, ok := q.sessions.claimOf(itemID)
	return ok
}

func (q *Queue) emit(ev Event) {
	if q.observer == nil {
		return
	}
	q.observer.Observe(ev)
}
