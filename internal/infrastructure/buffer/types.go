package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityActivity = "activity"
	EntityCache    = "cache"

	OperationAppend        = "append"
	OperationUpsert        = "upsert"
	OperationInsertMissing = "insert_missing"
	OperationReplace       = "replace"
	OperationDelete        = "delete"
)

// Item is a store write that failed on the request path and is replayed later.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	// Timestamp orders the item within its priority band and moves on every requeue.
	Timestamp time.Time `json:"timestamp"`
	// QueuedAt is when the write first failed; retention counts from here.
	QueuedAt time.Time `json:"queued_at"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
	if i.QueuedAt.IsZero() {
		i.QueuedAt = i.Timestamp
	}
}
