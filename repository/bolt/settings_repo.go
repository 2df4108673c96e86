package bolt

import (
	"context"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/sellerdesk/domain"
)

type settingsRepository struct {
	db *bbolt.DB
}

func (r *settingsRepository) Current(_ context.Context) (*domain.Settings, error) {
	var s domain.Settings
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketSettings), settingsKey, &s)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrSettingsNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrap("load settings", err)
	}
	return &s, nil
}

// Replace overwrites the single key, which is the whole singleton.
func (r *settingsRepository) Replace(_ context.Context, settings *domain.Settings) error {
	if settings == nil || settings.APIKey == "" {
		return domain.ErrInvalidPayload
	}
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now().UTC()
	}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketSettings), settingsKey, settings)
	})
	return wrap("replace settings", err)
}
