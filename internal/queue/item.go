package queue

import (
	"encoding/json"
	"time"
)

// Item is a unit of work. ID must be unique among pending items; Key names the
// mutual-exclusion domain and may be shared by any number of items.
type Item struct {
	ID      string          `json:"id"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Entry describes a pending item as seen by Snapshot, Get, and ClaimEntry.
type Entry struct {
	Item        Item
	SubmittedAt time.Time
	InFlight    bool
	ConsumerID  string
	ClaimedAt   time.Time
}

// Stats reports the queue's current shape and lifetime counters.
type Stats struct {
	Pending        int
	InFlight       int
	Keys           int
	Submitted      uint64
	Overwritten    uint64
	Claimed        uint64
	EmptyClaims    uint64
	Finalized      uint64
	FinalizeMisses uint64
}

func cloneItem(item Item) Item {
	if item.Payload != nil {
		payload := make(json.RawMessage, len(item.Payload))
		copy(payload, item.Payload)
		item.Payload = payload
	}
	return item
}
