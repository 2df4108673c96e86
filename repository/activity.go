package repository

import (
	"context"

	"github.com/fastygo/sellerdesk/domain"
)

type ActivityRepository interface {
	Append(ctx context.Context, entry *domain.ActivityEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.ActivityEntry, error)
}
