package redis

import (
	"context"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

const oauthStateTTL = 10 * time.Minute

type oauthStateRepository struct {
	client *redislib.Client
	prefix string
}

// NewOAuthStateRepository keeps provider handshakes for ten minutes.
func NewOAuthStateRepository(client *redislib.Client) repository.OAuthStateRepository {
	return &oauthStateRepository{client: client, prefix: "oauth_state:"}
}

func (r *oauthStateRepository) Put(ctx context.Context, state string, blob string) error {
	if state == "" {
		return domain.ErrInvalidPayload
	}
	if err := r.client.Set(ctx, r.prefix+state, blob, oauthStateTTL).Err(); err != nil {
		return domain.StorageError("save oauth state", err)
	}
	return nil
}

// Take reads and deletes in one transaction so a replayed callback finds nothing.
func (r *oauthStateRepository) Take(ctx context.Context, state string) (string, error) {
	key := r.prefix + state
	pipe := r.client.TxPipeline()
	get := pipe.Get(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redislib.Nil) {
		return "", domain.StorageError("load oauth state", err)
	}
	blob, err := get.Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", domain.ErrStateNotFound
		}
		return "", domain.StorageError("load oauth state", err)
	}
	return blob, nil
}
