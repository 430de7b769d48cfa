// Package journal keeps an append-only SQLite audit trail of queue activity.
//
// Every submit, claim, and finalize observed by the daemon's queue is written
// here so operators can answer "who held key K, and when". The journal is
// write-only from the queue's point of view: it is never read back to rebuild
// pending items, and a daemon restart always starts with an empty queue.
//
// Recorder adapts a Store to queue.Observer. Observe never blocks the queue's
// critical section; when the buffer is full the event is dropped and counted.
package journal
