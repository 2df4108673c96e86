package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

type settingsRepository struct {
	db DB
}

// NewSettingsRepository returns the singleton settings table.
func NewSettingsRepository(db DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Current(ctx context.Context) (*domain.Settings, error) {
	const query = `
	SELECT id, api_key, api_base_url, created_at
	FROM settings
	ORDER BY created_at DESC
	LIMIT 1
	`
	var s domain.Settings
	if err := r.db.QueryRow(ctx, query).Scan(&s.ID, &s.APIKey, &s.APIBaseURL, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, domain.StorageError("load settings", err)
	}
	return &s, nil
}

// Replace deletes every row and inserts the new one in a single transaction, so readers see
// either the old singleton or the new one.
func (r *settingsRepository) Replace(ctx context.Context, settings *domain.Settings) error {
	if settings == nil || settings.APIKey == "" {
		return domain.ErrInvalidPayload
	}
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.StorageError("begin settings replace", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM settings`); err != nil {
		return domain.StorageError("clear settings", err)
	}

	const insert = `
	INSERT INTO settings (id, api_key, api_base_url, created_at)
	VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, insert, settings.ID, settings.APIKey, settings.APIBaseURL, settings.CreatedAt); err != nil {
		return domain.StorageError("insert settings", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit settings", err)
	}
	return nil
}
