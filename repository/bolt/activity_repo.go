package bolt

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/sellerdesk/domain"
)

type activityRepository struct {
	db *bbolt.DB
}

// Keys are big-endian nanoseconds followed by the entry id, so cursor order is time order.
func activityKey(entry *domain.ActivityEntry) []byte {
	key := make([]byte, 8, 8+len(entry.ID))
	binary.BigEndian.PutUint64(key, uint64(entry.Timestamp.UnixNano()))
	return append(key, entry.ID...)
}

func (r *activityRepository) Append(_ context.Context, entry *domain.ActivityEntry) error {
	if entry == nil || entry.ActorID == "" || !entry.Action.Valid() {
		return domain.ErrInvalidPayload
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketActivity)
		key := activityKey(entry)
		if b.Get(key) != nil {
			return nil
		}
		return putJSON(b, key, entry)
	})
	return wrap("append activity", err)
}

func (r *activityRepository) ListRecent(_ context.Context, limit int) ([]domain.ActivityEntry, error) {
	limit = clampLimit(limit)
	entries := make([]domain.ActivityEntry, 0, limit)
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketActivity).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var entry domain.ActivityEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list activity", err)
	}
	return entries, nil
}
