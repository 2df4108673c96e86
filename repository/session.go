package repository

import (
	"context"

	"github.com/fastygo/sellerdesk/domain"
)

type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
}

// OAuthStateRepository keeps the provider session blob between redirect and callback.
type OAuthStateRepository interface {
	Put(ctx context.Context, state string, blob string) error
	// Take returns and removes the blob; a state can be consumed once.
	Take(ctx context.Context, state string) (string, error)
}
