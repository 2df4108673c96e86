package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

// errNewerScope aborts a replace scan once a newer row turns up.
var errNewerScope = errors.New("scope holds newer rows")

type cacheStore struct {
	db *bbolt.DB
}

func (s *cacheStore) Get(_ context.Context, kind domain.Kind, id string) (*domain.CachedEntity, error) {
	name, err := cacheBucket(kind)
	if err != nil {
		return nil, err
	}
	var entity domain.CachedEntity
	err = s.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(name), []byte(id), &entity)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrEntityNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrap("load "+string(kind), err)
	}
	return &entity, nil
}

func (s *cacheStore) List(_ context.Context, kind domain.Kind, filter repository.CacheFilter) ([]domain.CachedEntity, error) {
	name, err := cacheBucket(kind)
	if err != nil {
		return nil, err
	}
	var entities []domain.CachedEntity
	err = s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(name).ForEach(func(_, v []byte) error {
			var e domain.CachedEntity
			if err := unmarshal(v, &e); err != nil {
				return err
			}
			if filter.Scope != "" && e.Scope != filter.Scope {
				return nil
			}
			entities = append(entities, e)
			return nil
		})
	})
	if err != nil {
		return nil, wrap("list "+string(kind), err)
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].SortKey != entities[j].SortKey {
			return entities[i].SortKey > entities[j].SortKey
		}
		return entities[i].FetchedAt.After(entities[j].FetchedAt)
	})
	if limit := clampLimit(filter.Limit); !filter.All && len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

func (s *cacheStore) Upsert(_ context.Context, entity *domain.CachedEntity) error {
	if entity == nil {
		return domain.ErrInvalidPayload
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putEntity(tx, *entity, false)
	})
	return wrap("write "+string(entity.Kind), err)
}

func (s *cacheStore) InsertMissing(_ context.Context, entities []domain.CachedEntity) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, e := range entities {
			if err := putEntity(tx, e, true); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("insert cache rows", err)
}

func (s *cacheStore) BulkReplace(_ context.Context, kind domain.Kind, scope string, asOf time.Time, entities []domain.CachedEntity) error {
	name, err := cacheBucket(kind)
	if err != nil {
		return err
	}
	asOf = domain.AsOf(asOf)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e domain.CachedEntity
			if err := unmarshal(v, &e); err != nil {
				return err
			}
			if e.Scope != scope {
				return nil
			}
			if e.FetchedAfter(asOf) {
				return errNewerScope
			}
			stale = append(stale, append([]byte(nil), k...))
			return nil
		})
		if errors.Is(err, errNewerScope) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		for _, e := range entities {
			e.Kind = kind
			e.Scope = scope
			if e.FetchedAt.IsZero() {
				e.FetchedAt = asOf
			}
			if err := putEntity(tx, e, false); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("replace "+string(kind), err)
}

func (s *cacheStore) Delete(_ context.Context, kind domain.Kind, id string, asOf time.Time) error {
	name, err := cacheBucket(kind)
	if err != nil {
		return err
	}
	asOf = domain.AsOf(asOf)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		var current domain.CachedEntity
		found, err := getJSON(b, []byte(id), &current)
		if err != nil || !found {
			return err
		}
		if current.FetchedAfter(asOf) {
			return nil
		}
		return b.Delete([]byte(id))
	})
	return wrap("delete "+string(kind), err)
}

func (s *cacheStore) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, kind := range domain.Kinds() {
			name, _ := cacheBucket(kind)
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("clear cache", err)
}

func putEntity(tx *bbolt.Tx, e domain.CachedEntity, keepExisting bool) error {
	name, err := cacheBucket(e.Kind)
	if err != nil {
		return err
	}
	if e.ID == "" || len(e.Payload) == 0 {
		return domain.ErrInvalidPayload
	}
	b := tx.Bucket(name)
	var previous domain.CachedEntity
	found, err := getJSON(b, []byte(e.ID), &previous)
	if err != nil {
		return err
	}
	if found && keepExisting {
		return nil
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	if found && previous.FetchedAfter(e.FetchedAt) {
		return nil
	}
	return putJSON(b, []byte(e.ID), &e)
}

func unmarshal(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
