package bolt_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/repository/bolt"
)

func openStore(t *testing.T) *bolt.Store {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create and look up by discord id", func(t *testing.T) {
		store := openStore(t)
		user := &domain.User{ID: "u1", DiscordID: "42", Username: "alice", Role: domain.RoleUser, Status: domain.StatusPending}
		require.NoError(t, store.Users().Create(ctx, user))

		got, err := store.Users().GetByDiscordID(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
		assert.False(t, got.CreatedAt.IsZero())

		err = store.Users().Create(ctx, &domain.User{ID: "u2", DiscordID: "42"})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	})

	t.Run("Should return ErrUserNotFound for unknown ids", func(t *testing.T) {
		store := openStore(t)
		_, err := store.Users().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = store.Users().GetByDiscordID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Should refuse a second owner", func(t *testing.T) {
		store := openStore(t)
		require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "o1", DiscordID: "1", Role: domain.RoleOwner, Status: domain.StatusApproved}))
		err := store.Users().Create(ctx, &domain.User{ID: "o2", DiscordID: "2", Role: domain.RoleOwner, Status: domain.StatusApproved})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	})

	t.Run("Should filter list by status", func(t *testing.T) {
		store := openStore(t)
		require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "a", DiscordID: "1", Role: domain.RoleUser, Status: domain.StatusPending}))
		require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "b", DiscordID: "2", Role: domain.RoleUser, Status: domain.StatusApproved}))

		pending, err := store.Users().List(ctx, repository.UserFilter{Status: domain.StatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "a", pending[0].ID)
	})
}

func TestCompareAndSetAccess(t *testing.T) {
	ctx := context.Background()
	pending := domain.Access{Role: domain.RoleUser, Status: domain.StatusPending}
	approved := domain.Access{Role: domain.RoleUser, Status: domain.StatusApproved}

	t.Run("Should apply when the stored pair matches", func(t *testing.T) {
		store := openStore(t)
		require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "u1", DiscordID: "1", Role: domain.RoleUser, Status: domain.StatusPending}))

		by := "admin"
		at := time.Now().UTC()
		user, err := store.Users().CompareAndSetAccess(ctx, domain.AccessChange{
			UserID: "u1", Expected: pending, Next: approved, ApprovedBy: &by, ApprovedAt: &at,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, user.Status)
		require.NotNil(t, user.ApprovedBy)
		assert.Equal(t, "admin", *user.ApprovedBy)
	})

	t.Run("Should let exactly one concurrent writer win", func(t *testing.T) {
		store := openStore(t)
		require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "u1", DiscordID: "1", Role: domain.RoleUser, Status: domain.StatusPending}))

		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Users().CompareAndSetAccess(ctx, domain.AccessChange{UserID: "u1", Expected: pending, Next: approved})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var wins, conflicts int
		for err := range results {
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, domain.ErrAccessConflict):
				conflicts++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 7, conflicts)
	})

	t.Run("Should report missing user", func(t *testing.T) {
		store := openStore(t)
		_, err := store.Users().CompareAndSetAccess(ctx, domain.AccessChange{UserID: "nobody", Expected: pending, Next: approved})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestActivityAndSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("Should list activity newest first", func(t *testing.T) {
		store := openStore(t)
		base := time.Now().UTC()
		for i, action := range []domain.Action{domain.ActionLogin, domain.ActionApproveUser, domain.ActionLogout} {
			require.NoError(t, store.Activity().Append(ctx, &domain.ActivityEntry{
				ActorID: "u1", Action: action, Timestamp: base.Add(time.Duration(i) * time.Second),
			}))
		}
		entries, err := store.Activity().ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.ActionLogout, entries[0].Action)
		assert.Equal(t, domain.ActionApproveUser, entries[1].Action)
	})

	t.Run("Should reject unknown actions", func(t *testing.T) {
		store := openStore(t)
		err := store.Activity().Append(ctx, &domain.ActivityEntry{ActorID: "u1", Action: "dance"})
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})

	t.Run("Should keep a single settings record", func(t *testing.T) {
		store := openStore(t)
		_, err := store.Settings().Current(ctx)
		assert.ErrorIs(t, err, domain.ErrSettingsNotFound)

		require.NoError(t, store.Settings().Replace(ctx, &domain.Settings{APIKey: "first", APIBaseURL: "https://a"}))
		require.NoError(t, store.Settings().Replace(ctx, &domain.Settings{APIKey: "second", APIBaseURL: "https://b"}))

		current, err := store.Settings().Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "second", current.APIKey)
	})
}

func entity(kind domain.Kind, id, scope string, sortKey int64) domain.CachedEntity {
	return domain.CachedEntity{
		Kind:    kind,
		ID:      id,
		Scope:   scope,
		SortKey: sortKey,
		Payload: json.RawMessage(`{"id":"` + id + `"}`),
	}
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Should order by sort key descending", func(t *testing.T) {
		store := openStore(t)
		for _, e := range []domain.CachedEntity{
			entity(domain.KindOrder, "o1", "", 10),
			entity(domain.KindOrder, "o2", "", 30),
			entity(domain.KindOrder, "o3", "", 20),
		} {
			e := e
			require.NoError(t, store.Cache().Upsert(ctx, &e))
		}
		rows, err := store.Cache().List(ctx, domain.KindOrder, repository.CacheFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"o2", "o3", "o1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	})

	t.Run("Should ignore an upsert older than the cached row", func(t *testing.T) {
		store := openStore(t)
		later := time.Now().UTC()
		fresh := entity(domain.KindOffer, "o1", "", 0)
		fresh.FetchedAt = later
		fresh.Payload = json.RawMessage(`{"offer_id":"o1","v":"new"}`)
		require.NoError(t, store.Cache().Upsert(ctx, &fresh))

		replayed := entity(domain.KindOffer, "o1", "", 0)
		replayed.FetchedAt = later.Add(-time.Minute)
		replayed.Payload = json.RawMessage(`{"offer_id":"o1","v":"old"}`)
		require.NoError(t, store.Cache().Upsert(ctx, &replayed))

		got, err := store.Cache().Get(ctx, domain.KindOffer, "o1")
		require.NoError(t, err)
		assert.True(t, got.FetchedAt.Equal(later))
		assert.JSONEq(t, `{"offer_id":"o1","v":"new"}`, string(got.Payload))
	})

	t.Run("Should overwrite with a newer upsert", func(t *testing.T) {
		store := openStore(t)
		earlier := time.Now().UTC().Add(-time.Minute)
		first := entity(domain.KindOffer, "o1", "", 0)
		first.FetchedAt = earlier
		require.NoError(t, store.Cache().Upsert(ctx, &first))

		next := entity(domain.KindOffer, "o1", "", 0)
		next.FetchedAt = earlier.Add(time.Second)
		next.Payload = json.RawMessage(`{"offer_id":"o1","v":2}`)
		require.NoError(t, store.Cache().Upsert(ctx, &next))

		got, err := store.Cache().Get(ctx, domain.KindOffer, "o1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"offer_id":"o1","v":2}`, string(got.Payload))
	})

	t.Run("Should not resurrect rows with a replace older than the scope", func(t *testing.T) {
		store := openStore(t)
		now := time.Now().UTC()
		require.NoError(t, store.Cache().BulkReplace(ctx, domain.KindService, "", now, []domain.CachedEntity{
			entity(domain.KindService, "s2", "", 0),
		}))

		require.NoError(t, store.Cache().BulkReplace(ctx, domain.KindService, "", now.Add(-time.Minute), []domain.CachedEntity{
			entity(domain.KindService, "s1", "", 0), entity(domain.KindService, "s2", "", 0),
		}))

		rows, err := store.Cache().List(ctx, domain.KindService, repository.CacheFilter{All: true})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "s2", rows[0].ID)
	})

	t.Run("Should keep a row cached again after the delete was issued", func(t *testing.T) {
		store := openStore(t)
		now := time.Now().UTC()
		o := entity(domain.KindOffer, "o1", "", 0)
		o.FetchedAt = now
		require.NoError(t, store.Cache().Upsert(ctx, &o))

		require.NoError(t, store.Cache().Delete(ctx, domain.KindOffer, "o1", now.Add(-time.Minute)))
		_, err := store.Cache().Get(ctx, domain.KindOffer, "o1")
		require.NoError(t, err)

		require.NoError(t, store.Cache().Delete(ctx, domain.KindOffer, "o1", now.Add(time.Minute)))
		_, err = store.Cache().Get(ctx, domain.KindOffer, "o1")
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("Should keep existing rows on InsertMissing", func(t *testing.T) {
		store := openStore(t)
		original := entity(domain.KindWebhookLog, "e1", "", 0)
		original.Payload = json.RawMessage(`{"v":1}`)
		require.NoError(t, store.Cache().Upsert(ctx, &original))

		replacement := entity(domain.KindWebhookLog, "e1", "", 0)
		replacement.Payload = json.RawMessage(`{"v":2}`)
		require.NoError(t, store.Cache().InsertMissing(ctx, []domain.CachedEntity{replacement, entity(domain.KindWebhookLog, "e2", "", 0)}))

		got, err := store.Cache().Get(ctx, domain.KindWebhookLog, "e1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(got.Payload))
		rows, err := store.Cache().List(ctx, domain.KindWebhookLog, repository.CacheFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("Should replace only the given scope", func(t *testing.T) {
		store := openStore(t)
		require.NoError(t, store.Cache().BulkReplace(ctx, domain.KindBrand, "svc1", time.Now(), []domain.CachedEntity{
			entity(domain.KindBrand, "b1", "", 0), entity(domain.KindBrand, "b2", "", 0),
		}))
		require.NoError(t, store.Cache().BulkReplace(ctx, domain.KindBrand, "svc2", time.Now(), []domain.CachedEntity{
			entity(domain.KindBrand, "b3", "", 0),
		}))
		require.NoError(t, store.Cache().BulkReplace(ctx, domain.KindBrand, "svc1", time.Now(), []domain.CachedEntity{
			entity(domain.KindBrand, "b4", "", 0),
		}))

		svc1, err := store.Cache().List(ctx, domain.KindBrand, repository.CacheFilter{Scope: "svc1"})
		require.NoError(t, err)
		require.Len(t, svc1, 1)
		assert.Equal(t, "b4", svc1[0].ID)

		svc2, err := store.Cache().List(ctx, domain.KindBrand, repository.CacheFilter{Scope: "svc2"})
		require.NoError(t, err)
		assert.Len(t, svc2, 1)
	})

	t.Run("Should clear every kind", func(t *testing.T) {
		store := openStore(t)
		o := entity(domain.KindOrder, "o1", "", 0)
		require.NoError(t, store.Cache().Upsert(ctx, &o))
		require.NoError(t, store.Cache().Clear(ctx))
		_, err := store.Cache().Get(ctx, domain.KindOrder, "o1")
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("Should report ping failure after close", func(t *testing.T) {
		store, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"))
		require.NoError(t, err)
		require.NoError(t, store.Ping(ctx))
		require.NoError(t, store.Close())
		assert.Error(t, store.Ping(ctx))
	})
}
