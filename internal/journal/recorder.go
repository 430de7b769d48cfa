package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sessionq/internal/logging"
	"sessionq/internal/queue"
)

const (
	defaultBufferSize = 1024
	maxBatchSize      = 256
	appendTimeout     = 5 * time.Second
)

// RecorderStats reports recorder throughput.
type RecorderStats struct {
	Written uint64
	Dropped uint64
	Failed  uint64
}

// Recorder buffers queue events and writes them to a Store in batches.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	events chan queue.Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

var _ queue.Observer = (*Recorder)(nil)

// NewRecorder starts a background writer for store. bufferSize bounds the
// number of events waiting to be written.
func NewRecorder(store *Store, bufferSize int, logger *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		store:  store,
		logger: logging.NewComponentLogger(logger, "journal"),
		events: make(chan queue.Event, bufferSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe enqueues ev without blocking. Events arriving while the buffer is
// full, or after Close, are counted as dropped.
func (r *Recorder) Observe(ev queue.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Stats returns a snapshot of recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// Close stops accepting events, flushes what is buffered, and waits for the
// writer to exit. It does not close the Store.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	var reportedDrops uint64
	batch := make([]queue.Event, 0, maxBatchSize)
	for ev := range r.events {
		batch = append(batch[:0], ev)
	drain:
		for len(batch) < maxBatchSize {
			select {
			case next, ok := <-r.events:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		r.flush(batch)

		if dropped := r.dropped.Load(); dropped > reportedDrops {
			logging.WarnWithContext(r.logger, "journal buffer full; events dropped", "journal_events_dropped",
				logging.Uint64("dropped_total", dropped),
				logging.Uint64("dropped_since_last_report", dropped-reportedDrops),
				logging.String(logging.FieldErrorHint, "raise journal.buffer_size or check disk latency"),
				logging.String(logging.FieldImpact, "audit trail is missing some queue events"),
			)
			reportedDrops = dropped
		}
	}
}

func (r *Recorder) flush(batch []queue.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.store.Append(ctx, batch...); err != nil {
		r.failed.Add(uint64(len(batch)))
		logging.WarnWithContext(r.logger, "journal append failed", "journal_append_failed",
			logging.Int("events", len(batch)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path permissions and free disk space"),
			logging.String(logging.FieldImpact, "audit trail is missing some queue events"),
		)
		return
	}
	r.written.Add(uint64(len(batch)))
	r.logger.Debug("journal batch written", logging.Int("events", len(batch)))
}
