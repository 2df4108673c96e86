package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/sellerdesk/repository"
)

// DB is the subset of *pgxpool.Pool the repositories need; pgxmock pools satisfy it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store is the Postgres implementation of repository.Store.
type Store struct {
	db       DB
	users    repository.UserRepository
	activity repository.ActivityRepository
	settings repository.SettingsRepository
	cache    repository.CacheStore
}

// NewStore wires every Postgres-backed repository over one pool.
func NewStore(db DB) *Store {
	return &Store{
		db:       db,
		users:    NewUserRepository(db),
		activity: NewActivityRepository(db),
		settings: NewSettingsRepository(db),
		cache:    NewCacheStore(db),
	}
}

func (s *Store) Users() repository.UserRepository        { return s.users }
func (s *Store) Activity() repository.ActivityRepository { return s.activity }
func (s *Store) Settings() repository.SettingsRepository { return s.settings }
func (s *Store) Cache() repository.CacheStore            { return s.cache }
func (s *Store) Ping(ctx context.Context) error          { return s.db.Ping(ctx) }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

var _ repository.Store = (*Store)(nil)
