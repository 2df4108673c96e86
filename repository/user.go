package repository

import (
	"context"
	"time"

	"github.com/fastygo/sellerdesk/domain"
)

type UserFilter struct {
	Status domain.Status
	Role   domain.Role
	Limit  int
	Offset int
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	// Create inserts a new user; it fails with a conflict error if the discord id exists.
	Create(ctx context.Context, user *domain.User) error
	// UpdateProfile refreshes profile fields and login/activity timestamps only.
	UpdateProfile(ctx context.Context, user *domain.User) error
	// CompareAndSetAccess writes change.Next only if the stored pair equals change.Expected.
	// It returns domain.ErrAccessConflict when the row changed and domain.ErrUserNotFound when absent.
	CompareAndSetAccess(ctx context.Context, change domain.AccessChange) (*domain.User, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
}
