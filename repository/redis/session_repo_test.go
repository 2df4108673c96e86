package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository/redis"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redislib.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Should save and load a session with ttl", func(t *testing.T) {
		mr, client := newClient(t)
		repo := redis.NewSessionRepository(client, time.Hour)

		session := &domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(30 * time.Minute)}
		require.NoError(t, repo.Save(ctx, session))

		got, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.Greater(t, mr.TTL("session:s1"), 25*time.Minute)
	})

	t.Run("Should expire with the ttl", func(t *testing.T) {
		mr, client := newClient(t)
		repo := redis.NewSessionRepository(client, time.Hour)
		require.NoError(t, repo.Save(ctx, &domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Minute)}))

		mr.FastForward(2 * time.Minute)
		_, err := repo.Get(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Should fall back to the default ttl without an expiry", func(t *testing.T) {
		mr, client := newClient(t)
		repo := redis.NewSessionRepository(client, time.Hour)
		session := &domain.Session{ID: "s1", UserID: "u1"}
		require.NoError(t, repo.Save(ctx, session))

		assert.False(t, session.ExpiresAt.IsZero())
		assert.Greater(t, mr.TTL("session:s1"), 55*time.Minute)
	})

	t.Run("Should refuse sessions that are expired or ownerless", func(t *testing.T) {
		_, client := newClient(t)
		repo := redis.NewSessionRepository(client, time.Hour)

		err := repo.Save(ctx, &domain.Session{ID: "s1", UserID: "u1", CreatedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour)})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
		assert.ErrorIs(t, repo.Save(ctx, &domain.Session{ID: "s2"}), domain.ErrInvalidPayload)
	})

	t.Run("Should report corrupt payloads and outages as storage errors", func(t *testing.T) {
		mr, client := newClient(t)
		repo := redis.NewSessionRepository(client, time.Hour)
		require.NoError(t, mr.Set("session:bad", "{nope"))

		_, err := repo.Get(ctx, "bad")
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeStorage))

		mr.Close()
		err = repo.Save(ctx, &domain.Session{ID: "s1", UserID: "u1"})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeStorage))
	})

	t.Run("Should delete sessions", func(t *testing.T) {
		_, client := newClient(t)
		repo := redis.NewSessionRepository(client, time.Hour)
		require.NoError(t, repo.Save(ctx, &domain.Session{ID: "s1", UserID: "u1"}))
		require.NoError(t, repo.Delete(ctx, "s1"))
		_, err := repo.Get(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestOAuthStateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Should hand out a state exactly once", func(t *testing.T) {
		_, client := newClient(t)
		repo := redis.NewOAuthStateRepository(client)
		require.NoError(t, repo.Put(ctx, "abc", `{"AuthURL":"x"}`))

		blob, err := repo.Take(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, `{"AuthURL":"x"}`, blob)

		_, err = repo.Take(ctx, "abc")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Should surface redis outages as storage errors", func(t *testing.T) {
		mr, client := newClient(t)
		repo := redis.NewOAuthStateRepository(client)
		mr.Close()

		_, err := repo.Take(ctx, "abc")
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeStorage))
	})
}
