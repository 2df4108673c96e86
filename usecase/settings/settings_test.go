package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/repository/bolt"
)

type lattice struct{}

func (lattice) Authorize(_ context.Context, caller *domain.User, level domain.Level) error {
	return domain.Evaluate(caller, level)
}

var (
	owner  = &domain.User{ID: "o", Role: domain.RoleOwner, Status: domain.StatusApproved}
	member = &domain.User{ID: "u", Role: domain.RoleUser, Status: domain.StatusApproved}
)

func setup(t *testing.T) (*UseCase, *bolt.Store) {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	provider := marketplace.NewSettingsProvider(store.Settings(), 2*time.Second)
	return New(store.Settings(), provider, lattice{}, "", nil), store
}

func TestSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the default url when nothing is saved", func(t *testing.T) {
		uc, _ := setup(t)
		s, err := uc.Get(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultMarketplaceURL, s.APIBaseURL)
		assert.Empty(t, s.APIKey)
	})

	t.Run("Should replace rather than merge successive saves", func(t *testing.T) {
		uc, store := setup(t)
		_, err := uc.Save(ctx, owner, Input{APIKey: "X", APIBaseURL: "https://a"})
		require.NoError(t, err)
		_, err = uc.Save(ctx, owner, Input{APIKey: "Y"})
		require.NoError(t, err)

		s, err := uc.Get(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "Y", s.APIKey)
		assert.Equal(t, domain.DefaultMarketplaceURL, s.APIBaseURL)

		current, err := store.Settings().Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.ID, current.ID)
	})

	t.Run("Should mask the key for non-admins", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Save(ctx, owner, Input{APIKey: "secret-key-1234"})
		require.NoError(t, err)

		s, err := uc.Get(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, "****1234", s.APIKey)
	})

	t.Run("Should require an api key and an admin", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Save(ctx, owner, Input{APIBaseURL: "https://a"})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

		_, err = uc.Save(ctx, member, Input{APIKey: "X"})
		assert.ErrorIs(t, err, domain.ErrForbiddenRole)

		_, err = uc.Save(ctx, owner, Input{APIKey: "X", APIBaseURL: "ftp://nope"})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	})
}

func TestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("Should succeed only on the success code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := marketplace.SuccessCode
			if r.Header.Get("Authorization") != "Bearer good" {
				code = 40100001
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": "Unauthorized", "payload": map[string]any{}})
		}))
		defer srv.Close()

		uc, store := setup(t)
		require.NoError(t, uc.TestConnection(ctx, owner, Input{APIKey: "good", APIBaseURL: srv.URL}))

		err := uc.TestConnection(ctx, owner, Input{APIKey: "bad", APIBaseURL: srv.URL})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeUpstreamDomain, domain.ReasonOf(err))

		_, err = store.Settings().Current(ctx)
		assert.ErrorIs(t, err, domain.ErrSettingsNotFound)
	})
}
