package repository

import (
	"context"

	"github.com/fastygo/sellerdesk/domain"
)

type SettingsRepository interface {
	// Current returns the active record or domain.ErrSettingsNotFound.
	Current(ctx context.Context) (*domain.Settings, error)
	// Replace supersedes every existing record with settings in one unit.
	Replace(ctx context.Context, settings *domain.Settings) error
}
