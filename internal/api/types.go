package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a pending queue entry in a transport-friendly format.
type QueueItem struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	SubmittedAt string          `json:"submittedAt,omitempty"`
	InFlight    bool            `json:"inFlight"`
	ConsumerID  string          `json:"consumerId,omitempty"`
	ClaimedAt   string          `json:"claimedAt,omitempty"`
}

// QueueStats summarizes queue gauges and lifetime counters.
type QueueStats struct {
	Pending        int    `json:"pending"`
	InFlight       int    `json:"inFlight"`
	Keys           int    `json:"keys"`
	Submitted      uint64 `json:"submitted"`
	Overwritten    uint64 `json:"overwritten"`
	Claimed        uint64 `json:"claimed"`
	EmptyClaims    uint64 `json:"emptyClaims"`
	Finalized      uint64 `json:"finalized"`
	FinalizeMisses uint64 `json:"finalizeMisses"`
}

// JournalEvent is one audit journal record.
type JournalEvent struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	ItemID     string `json:"itemId"`
	Key        string `json:"key"`
	ConsumerID string `json:"consumerId,omitempty"`
	Overwrote  bool   `json:"overwrote,omitempty"`
	At         string `json:"at"`
}

// JournalStatus reports audit journal health.
type JournalStatus struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Records int64  `json:"records"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// DirectoryStatus captures accessibility of a directory the daemon uses.
type DirectoryStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Ok     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	RunID        string            `json:"runId"`
	StartedAt    string            `json:"startedAt,omitempty"`
	SocketPath   string            `json:"socketPath"`
	LockFilePath string            `json:"lockFilePath"`
	APIBind      string            `json:"apiBind,omitempty"`
	LogPath      string            `json:"logPath,omitempty"`
	Queue        QueueStats        `json:"queue"`
	Journal      JournalStatus     `json:"journal"`
	Directories  []DirectoryStatus `json:"directories"`
}

// SubmitRequest adds or overwrites an item.
type SubmitRequest struct {
	ID      string          `json:"id"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubmitResponse reports the queue size after the submit.
type SubmitResponse struct {
	Count int `json:"count"`
}

// ClaimRequest asks for the next claimable item.
type ClaimRequest struct {
	ConsumerID string `json:"consumerId"`
}

// ClaimResponse carries the claimed item, if any. Found=false is the normal
// empty outcome.
type ClaimResponse struct {
	Found bool       `json:"found"`
	Item  *QueueItem `json:"item,omitempty"`
}

// FinalizeRequest removes an item and releases its key.
type FinalizeRequest struct {
	ConsumerID string `json:"consumerId"`
	ItemID     string `json:"itemId"`
}

// FinalizeResponse reports the queue size after the finalize.
type FinalizeResponse struct {
	Count int `json:"count"`
}

// CountResponse reports the number of pending items, in-flight included.
type CountResponse struct {
	Count int `json:"count"`
}

// QueueListResponse wraps pending items in insertion order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
	Stats QueueStats  `json:"stats"`
}

// JournalRequest filters journal queries.
type JournalRequest struct {
	ItemID     string `json:"itemId,omitempty"`
	Key        string `json:"key,omitempty"`
	ConsumerID string `json:"consumerId,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// JournalResponse wraps journal records, newest first.
type JournalResponse struct {
	Events []JournalEvent `json:"events"`
}
