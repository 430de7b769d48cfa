package queue

import "time"

type session struct {
	key        string
	itemID     string
	consumerID string
	since      time.Time
}

// sessionTracker is the set of keys currently claimed by some consumer,
// indexed both by key and by the claimed item id. The consumer is recorded
// for inspection and never checked against the caller of Finalize.
type sessionTracker struct {
	byKey  map[string]*session
	byItem map[string]*session
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{
		byKey:  make(map[string]*session),
		byItem: make(map[string]*session),
	}
}

func (t *sessionTracker) isActive(key string) bool {
	_, ok := t.byKey[key]
	return ok
}

// activate claims s.key for s.itemID. It is a no-op for a key that is
// already active.
func (t *sessionTracker) activate(s session) {
	if _, ok := t.byKey[s.key]; ok {
		return
	}
	t.byKey[s.key] = &s
	t.byItem[s.itemID] = &s
}

func (t *sessionTracker) release(key string) {
	s, ok := t.byKey[key]
	if !ok {
		return
	}
	delete(t.byKey, key)
	delete(t.byItem, s.itemID)
}

func (t *sessionTracker) holder(key string) (session, bool) {
	s, ok := t.byKey[key]
	if !ok {
		return session{}, false
	}
	return *s, true
}

// claimOf returns the session an item was claimed under. The key may differ
// from the item's current key after an in-flight overwrite.
func (t *sessionTracker) claimOf(itemID string) (session, bool) {
	s, ok := t.byItem[itemID]
	if !ok {
		return session{}, false
	}
	return *s, true
}

func (t *sessionTracker) len() int {
	return len(t.byKey)
}
