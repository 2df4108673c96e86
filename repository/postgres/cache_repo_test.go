package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/repository/postgres"
)

var cacheCols = []string{"id", "scope", "labels", "sort_key", "payload", "fetched_at"}

func TestCacheStore_List(t *testing.T) {
	t.Run("Should order by sort key and decode labels", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM brands WHERE scope = \\$1 ORDER BY sort_key DESC, fetched_at DESC LIMIT 500").
			WithArgs("svc-1").
			WillReturnRows(mock.NewRows(cacheCols).
				AddRow("b1", "svc-1", []byte(`{"brand_name":"Acme"}`), int64(0), []byte(`{"brand_id":"b1"}`), now))

		rows, err := store.List(context.Background(), domain.KindBrand, repository.CacheFilter{Scope: "svc-1"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Acme", rows[0].Label("brand_name"))
		assert.Equal(t, domain.KindBrand, rows[0].Kind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject unknown kinds", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		_, err = store.List(context.Background(), domain.Kind("widget"), repository.CacheFilter{})
		var derr *domain.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, domain.ErrCodeInvalid, derr.Code)
	})
}

func TestCacheStore_Writes(t *testing.T) {
	t.Run("Should only overwrite rows fetched no later than the upsert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		mock.ExpectExec("(?s)INSERT INTO orders (.+) ON CONFLICT \\(id\\) DO UPDATE SET (.+) WHERE orders.fetched_at <= EXCLUDED.fetched_at").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = store.Upsert(context.Background(), &domain.CachedEntity{
			Kind:    domain.KindOrder,
			ID:      "o1",
			Payload: json.RawMessage(`{"order_id":"o1"}`),
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should insert missing rows without overwriting", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		mock.ExpectExec("INSERT INTO webhook_logs (.+) ON CONFLICT \\(id\\) DO NOTHING").
			WillReturnResult(pgxmock.NewResult("INSERT", 2))

		err = store.InsertMissing(context.Background(), []domain.CachedEntity{
			{Kind: domain.KindWebhookLog, ID: "e1", Payload: json.RawMessage(`{}`)},
			{Kind: domain.KindWebhookLog, ID: "e2", Payload: json.RawMessage(`{}`)},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should replace a scope inside one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products WHERE scope = \\$1 AND fetched_at > \\$2").
			WithArgs("svc/brand", pgxmock.AnyArg()).
			WillReturnRows(mock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("DELETE FROM products WHERE scope = \\$1").
			WithArgs("svc/brand").
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec("INSERT INTO products").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err = store.BulkReplace(context.Background(), domain.KindProduct, "svc/brand", time.Now(), []domain.CachedEntity{
			{ID: "p1", Payload: json.RawMessage(`{"product_id":"p1"}`)},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should only clear the scope when the replacement is empty", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM brands WHERE scope = \\$1 AND fetched_at > \\$2").
			WithArgs("svc", pgxmock.AnyArg()).
			WillReturnRows(mock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("DELETE FROM brands WHERE scope = \\$1").
			WithArgs("svc").
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectCommit()

		err = store.BulkReplace(context.Background(), domain.KindBrand, "svc", time.Now(), nil)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should skip a replace when the scope holds newer rows", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		asOf := time.Now().Add(-time.Minute)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM services WHERE scope = \\$1 AND fetched_at > \\$2").
			WithArgs("", asOf).
			WillReturnRows(mock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectRollback()

		err = store.BulkReplace(context.Background(), domain.KindService, "", asOf, []domain.CachedEntity{
			{ID: "s1", Payload: json.RawMessage(`{"service_id":"s1"}`)},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should delete only rows fetched before the delete", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		asOf := time.Now()
		mock.ExpectExec("DELETE FROM offers WHERE id = \\$1 AND fetched_at <= \\$2").
			WithArgs("of1", asOf).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, store.Delete(context.Background(), domain.KindOffer, "of1", asOf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should truncate the cache tables and nothing else", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := postgres.NewCacheStore(mock)

		mock.ExpectExec("^TRUNCATE orders, offers, services, brands, products, inventory_items, webhook_logs$").
			WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

		require.NoError(t, store.Clear(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
