package queue

import "time"

// EventKind names a state change reported to observers.
type EventKind string

const (
	EventSubmit   EventKind = "submit"
	EventClaim    EventKind = "claim"
	EventFinalize EventKind = "finalize"
)

// Event describes one committed queue operation.
type Event struct {
	Kind       EventKind
	ItemID     string
	Key        string
	ConsumerID string
	Overwrote  bool
	At         time.Time
}

// Observer receives events inside the queue's critical section, so events
// arrive in the order the operations took effect. Implementations must not
// block and must not call back into the Queue.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }
