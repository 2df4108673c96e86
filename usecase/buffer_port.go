package usecase

import (
	"context"
	"time"

	"github.com/fastygo/sellerdesk/domain"
)

// Cache write operations that can be replayed.
const (
	CacheOpUpsert        = "upsert"
	CacheOpInsertMissing = "insert_missing"
	CacheOpReplace       = "replace"
	CacheOpDelete        = "delete"
)

// CacheWrite describes one cache mutation. Replace uses Kind+Scope+Entities, Delete uses
// Kind+ID, the others use Entities. At is when upstream answered; a replayed write never
// overrides rows fetched after it.
type CacheWrite struct {
	Op       string                `json:"op"`
	Kind     domain.Kind           `json:"kind"`
	Scope    string                `json:"scope,omitempty"`
	ID       string                `json:"id,omitempty"`
	Entities []domain.CachedEntity `json:"entities,omitempty"`
	At       time.Time             `json:"at"`
}

// OperationBuffer takes store writes that failed on the request path. Implementations retry
// once immediately and persist the write for later replay if that fails too.
type OperationBuffer interface {
	BufferActivity(ctx context.Context, entry *domain.ActivityEntry) error
	BufferCacheWrite(ctx context.Context, write CacheWrite) error
}
