// Package catalog decides, per marketplace entity, whether a read is served from the local
// cache or from upstream, and keeps the cache in step with successful upstream writes.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/usecase"
)

// Result is what every coordinator read returns. Cached is true only when upstream was not
// called at all.
type Result struct {
	Data   json.RawMessage
	Cached bool
	// After is the next brand page cursor, if upstream returned one.
	After string
}

type Coordinator struct {
	provider marketplace.Provider
	cache    repository.CacheStore
	buffer   usecase.OperationBuffer
	logger   *zap.Logger
	now      func() time.Time
}

func New(provider marketplace.Provider, cache repository.CacheStore, buffer usecase.OperationBuffer, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		provider: provider,
		cache:    cache,
		buffer:   buffer,
		logger:   logger.Named("catalog"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *Coordinator) client(ctx context.Context) (marketplace.API, error) {
	return c.provider.Client(ctx)
}

// lookup returns the cached row or nil. Read errors degrade to a miss.
func (c *Coordinator) lookup(ctx context.Context, kind domain.Kind, id string) *domain.CachedEntity {
	entity, err := c.cache.Get(ctx, kind, id)
	if err != nil {
		if !errors.Is(err, domain.ErrEntityNotFound) {
			c.logger.Warn("cache read failed, falling through to upstream",
				zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		}
		return nil
	}
	return entity
}

// scoped returns every cached row in scope, or nil on a miss or read error.
func (c *Coordinator) scoped(ctx context.Context, kind domain.Kind, scope string) []domain.CachedEntity {
	rows, err := c.cache.List(ctx, kind, repository.CacheFilter{Scope: scope, All: true})
	if err != nil {
		c.logger.Warn("cache list failed, falling through to upstream",
			zap.String("kind", string(kind)), zap.String("scope", scope), zap.Error(err))
		return nil
	}
	return rows
}

// persist applies one cache mutation after upstream accepted the call. Failures never reach
// the caller; the write is handed to the replay buffer instead.
func (c *Coordinator) persist(ctx context.Context, write usecase.CacheWrite) {
	if write.At.IsZero() {
		write.At = c.now()
	}
	var err error
	switch write.Op {
	case usecase.CacheOpUpsert:
		for i := range write.Entities {
			if err = c.cache.Upsert(ctx, &write.Entities[i]); err != nil {
				break
			}
		}
	case usecase.CacheOpInsertMissing:
		err = c.cache.InsertMissing(ctx, write.Entities)
	case usecase.CacheOpReplace:
		err = c.cache.BulkReplace(ctx, write.Kind, write.Scope, write.At, write.Entities)
	case usecase.CacheOpDelete:
		err = c.cache.Delete(ctx, write.Kind, write.ID, write.At)
	}
	if err == nil {
		return
	}

	log := c.logger.With(zap.String("op", write.Op), zap.String("kind", string(write.Kind)), zap.Error(err))
	if c.buffer == nil {
		log.Error("cache write failed after upstream success")
		return
	}
	if bufErr := c.buffer.BufferCacheWrite(ctx, write); bufErr != nil {
		log.Error("cache write lost", zap.NamedError("buffer_error", bufErr))
		return
	}
	log.Warn("cache write failed after upstream success, queued for replay")
}

// entity builds the cached row for one upstream record. fallbackID is used when the payload
// does not carry its own id, as with partial update responses.
func (c *Coordinator) entity(kind domain.Kind, scope, fallbackID string, payload json.RawMessage) (domain.CachedEntity, bool) {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return domain.CachedEntity{}, false
	}
	doc := gjson.ParseBytes(payload)
	id := doc.Get(spec.IDField).String()
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return domain.CachedEntity{}, false
	}

	labels := make(map[string]string, len(spec.Labels))
	for _, name := range spec.Labels {
		if v := doc.Get(name); v.Exists() && v.Type != gjson.Null {
			labels[name] = v.String()
		}
	}
	var sortKey int64
	if spec.SortField != "" {
		sortKey = sortValue(doc.Get(spec.SortField))
	}
	return domain.CachedEntity{
		Kind:      kind,
		ID:        id,
		Scope:     scope,
		Labels:    labels,
		SortKey:   sortKey,
		Payload:   compact(payload),
		FetchedAt: c.now(),
	}, true
}

// entities converts a JSON array of records, skipping any without an id.
func (c *Coordinator) entities(kind domain.Kind, scope string, list gjson.Result) []domain.CachedEntity {
	out := make([]domain.CachedEntity, 0, len(list.Array()))
	list.ForEach(func(_, item gjson.Result) bool {
		if e, ok := c.entity(kind, scope, "", json.RawMessage(item.Raw)); ok {
			out = append(out, e)
		} else {
			c.logger.Debug("skipping record without id", zap.String("kind", string(kind)))
		}
		return true
	})
	return out
}

// sortValue accepts unix timestamps in seconds or milliseconds and RFC 3339 strings.
func sortValue(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n > 0 && n < 1e12 {
			n *= 1000
		}
		return n
	case gjson.String:
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			return t.UnixMilli()
		}
		return v.Int()
	}
	return 0
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// payloads joins the stored payloads of rows into one JSON array.
func payloads(rows []domain.CachedEntity) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(row.Payload)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// listOf returns field as a JSON array, or [] when upstream omitted it.
func listOf(payload json.RawMessage, field string) gjson.Result {
	v := gjson.GetBytes(payload, field)
	if !v.IsArray() {
		return gjson.Parse("[]")
	}
	return v
}

// ClearCache empties every cached kind. Users, settings and audit entries are untouched.
func (c *Coordinator) ClearCache(ctx context.Context) error {
	if err := c.cache.Clear(ctx); err != nil {
		return err
	}
	c.logger.Info("cache cleared")
	return nil
}
