// Package bolt is the embedded single-file implementation of repository.Store.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

var (
	bucketUsers     = []byte("users")
	bucketDiscordID = []byte("users_by_discord")
	bucketActivity  = []byte("activity_logs")
	bucketSettings  = []byte("settings")

	settingsKey = []byte("current")
)

func cacheBucket(kind domain.Kind) ([]byte, error) {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown cache kind "+string(kind))
	}
	return []byte("cache_" + spec.Table), nil
}

// Store keeps every repository in one Bolt file; each collection is a bucket.
type Store struct {
	db       *bbolt.DB
	users    *userRepository
	activity *activityRepository
	settings *settingsRepository
	cache    *cacheStore
}

// Open creates the file if needed and ensures every bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	buckets := [][]byte{bucketUsers, bucketDiscordID, bucketActivity, bucketSettings}
	for _, kind := range domain.Kinds() {
		name, _ := cacheBucket(kind)
		buckets = append(buckets, name)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		users:    &userRepository{db: db},
		activity: &activityRepository{db: db},
		settings: &settingsRepository{db: db},
		cache:    &cacheStore{db: db},
	}, nil
}

func (s *Store) Users() repository.UserRepository        { return s.users }
func (s *Store) Activity() repository.ActivityRepository { return s.activity }
func (s *Store) Settings() repository.SettingsRepository { return s.settings }
func (s *Store) Cache() repository.CacheStore            { return s.cache }

// Ping runs an empty read transaction; it fails once the file is closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ repository.Store = (*Store)(nil)

func getJSON(b *bbolt.Bucket, key []byte, out any) (bool, error) {
	raw := b.Get(key)
	if raw == nil {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

// wrap turns bolt failures into storage errors and leaves domain errors as they are.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	return domain.StorageError(op, err)
}
