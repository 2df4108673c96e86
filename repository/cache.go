package repository

import (
	"context"
	"time"

	"github.com/fastygo/sellerdesk/domain"
)

type CacheFilter struct {
	Scope string
	Limit int
	// All returns every row in scope and ignores Limit.
	All bool
}

// CacheStore is the per-kind mirror of upstream records shared by both store backends.
type CacheStore interface {
	Get(ctx context.Context, kind domain.Kind, id string) (*domain.CachedEntity, error)
	// List returns rows ordered by sort key then fetched_at, newest first.
	List(ctx context.Context, kind domain.Kind, filter CacheFilter) ([]domain.CachedEntity, error)
	// Upsert writes entity unless the cached row was fetched after it.
	Upsert(ctx context.Context, entity *domain.CachedEntity) error
	// InsertMissing adds rows whose id is not cached yet and leaves existing rows untouched.
	InsertMissing(ctx context.Context, entities []domain.CachedEntity) error
	// BulkReplace deletes every row of kind within scope and inserts entities, atomically.
	// Nothing changes when a row in scope was fetched after asOf.
	BulkReplace(ctx context.Context, kind domain.Kind, scope string, asOf time.Time, entities []domain.CachedEntity) error
	// Delete removes the row unless it was fetched after asOf.
	Delete(ctx context.Context, kind domain.Kind, id string, asOf time.Time) error
	// Clear empties every cached kind.
	Clear(ctx context.Context) error
}

// Store bundles the persistent repositories a backend provides.
type Store interface {
	Users() UserRepository
	Activity() ActivityRepository
	Settings() SettingsRepository
	Cache() CacheStore
	Ping(ctx context.Context) error
	Close() error
}
