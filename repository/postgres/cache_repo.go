package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

var cacheColumns = []string{"id", "scope", "labels", "sort_key", "payload", "fetched_at"}

type cacheRow struct {
	ID        string    `db:"id"`
	Scope     string    `db:"scope"`
	Labels    []byte    `db:"labels"`
	SortKey   int64     `db:"sort_key"`
	Payload   []byte    `db:"payload"`
	FetchedAt time.Time `db:"fetched_at"`
}

func (r cacheRow) toDomain(kind domain.Kind) domain.CachedEntity {
	entity := domain.CachedEntity{
		Kind:      kind,
		ID:        r.ID,
		Scope:     r.Scope,
		SortKey:   r.SortKey,
		Payload:   json.RawMessage(r.Payload),
		FetchedAt: r.FetchedAt,
	}
	if len(r.Labels) > 0 {
		_ = json.Unmarshal(r.Labels, &entity.Labels)
	}
	return entity
}

type cacheStore struct {
	db DB
}

// NewCacheStore returns the per-kind cache tables.
func NewCacheStore(db DB) repository.CacheStore {
	return &cacheStore{db: db}
}

func tableFor(kind domain.Kind) (string, error) {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return "", domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown cache kind %q", kind))
	}
	return spec.Table, nil
}

func (s *cacheStore) Get(ctx context.Context, kind domain.Kind, id string) (*domain.CachedEntity, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query, args, err := psql.Select(cacheColumns...).From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var row cacheRow
	if err := pgxscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, domain.StorageError("load "+string(kind), err)
	}
	entity := row.toDomain(kind)
	return &entity, nil
}

func (s *cacheStore) List(ctx context.Context, kind domain.Kind, filter repository.CacheFilter) ([]domain.CachedEntity, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	qb := psql.Select(cacheColumns...).From(table).OrderBy("sort_key DESC", "fetched_at DESC")
	if filter.Scope != "" {
		qb = qb.Where(squirrel.Eq{"scope": filter.Scope})
	}
	if !filter.All {
		qb = qb.Limit(uint64(clampLimit(filter.Limit)))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []cacheRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, domain.StorageError("list "+string(kind), err)
	}
	entities := make([]domain.CachedEntity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, row.toDomain(kind))
	}
	return entities, nil
}

func (s *cacheStore) Upsert(ctx context.Context, entity *domain.CachedEntity) error {
	if entity == nil {
		return domain.ErrInvalidPayload
	}
	return s.write(ctx, s.db, []domain.CachedEntity{*entity}, false)
}

func (s *cacheStore) InsertMissing(ctx context.Context, entities []domain.CachedEntity) error {
	byKind := groupByKind(entities)
	for _, group := range byKind {
		if err := s.write(ctx, s.db, group, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *cacheStore) BulkReplace(ctx context.Context, kind domain.Kind, scope string, asOf time.Time, entities []domain.CachedEntity) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	asOf = domain.AsOf(asOf)
	for i := range entities {
		entities[i].Kind = kind
		entities[i].Scope = scope
		if entities[i].FetchedAt.IsZero() {
			entities[i].FetchedAt = asOf
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.StorageError("begin replace "+string(kind), err)
	}
	defer tx.Rollback(ctx)

	// A scope refreshed after asOf keeps its rows.
	query, args, err := psql.Select("COUNT(*)").From(table).
		Where(squirrel.Eq{"scope": scope}).
		Where(squirrel.Gt{"fetched_at": asOf}).
		ToSql()
	if err != nil {
		return err
	}
	var newer int
	if err := tx.QueryRow(ctx, query, args...).Scan(&newer); err != nil {
		return domain.StorageError("check "+string(kind), err)
	}
	if newer > 0 {
		return nil
	}

	query, args, err = psql.Delete(table).Where(squirrel.Eq{"scope": scope}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return domain.StorageError("clear "+string(kind), err)
	}
	if err := s.write(ctx, tx, entities, false); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit replace "+string(kind), err)
	}
	return nil
}

func (s *cacheStore) Delete(ctx context.Context, kind domain.Kind, id string, asOf time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query, args, err := psql.Delete(table).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.LtOrEq{"fetched_at": domain.AsOf(asOf)}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return domain.StorageError("delete "+string(kind), err)
	}
	return nil
}

func (s *cacheStore) Clear(ctx context.Context) error {
	tables := make([]string, 0, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		spec, _ := domain.SpecFor(kind)
		tables = append(tables, spec.Table)
	}
	if _, err := s.db.Exec(ctx, "TRUNCATE "+strings.Join(tables, ", ")); err != nil {
		return domain.StorageError("clear cache", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// write issues one multi-row insert per call. Existing rows are either left alone
// (keepExisting) or overwritten only by data fetched no earlier than theirs.
func (s *cacheStore) write(ctx context.Context, db execer, entities []domain.CachedEntity, keepExisting bool) error {
	if len(entities) == 0 {
		return nil
	}
	kind := entities[0].Kind
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	qb := psql.Insert(table).Columns(cacheColumns...)
	now := time.Now().UTC()
	for _, e := range dedupe(entities) {
		if e.Kind != kind {
			return domain.NewError(domain.ErrCodeInvalid, "mixed kinds in one cache write")
		}
		if e.ID == "" || len(e.Payload) == 0 {
			return domain.ErrInvalidPayload
		}
		fetched := e.FetchedAt
		if fetched.IsZero() {
			fetched = now
		}
		qb = qb.Values(e.ID, e.Scope, nullBytes(marshalMap(e.Labels)), e.SortKey, []byte(e.Payload), fetched)
	}

	if keepExisting {
		qb = qb.Suffix("ON CONFLICT (id) DO NOTHING")
	} else {
		qb = qb.Suffix(fmt.Sprintf(`ON CONFLICT (id) DO UPDATE SET
			scope = EXCLUDED.scope,
			labels = EXCLUDED.labels,
			sort_key = EXCLUDED.sort_key,
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
			WHERE %s.fetched_at <= EXCLUDED.fetched_at`, table))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return domain.StorageError("write "+string(kind), err)
	}
	return nil
}

func groupByKind(entities []domain.CachedEntity) map[domain.Kind][]domain.CachedEntity {
	out := make(map[domain.Kind][]domain.CachedEntity)
	for _, e := range entities {
		out[e.Kind] = append(out[e.Kind], e)
	}
	return out
}

// dedupe keeps the last occurrence of each id; Postgres rejects an upsert that touches a row twice.
func dedupe(entities []domain.CachedEntity) []domain.CachedEntity {
	index := make(map[string]int, len(entities))
	out := make([]domain.CachedEntity, 0, len(entities))
	for _, e := range entities {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
