package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository/postgres"
)

func TestSettingsRepository(t *testing.T) {
	t.Run("Should return ErrSettingsNotFound before first save", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := postgres.NewSettingsRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM settings").WillReturnError(pgx.ErrNoRows)

		_, err = repo.Current(context.Background())
		assert.True(t, errors.Is(err, domain.ErrSettingsNotFound))
	})

	t.Run("Should replace the singleton in one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := postgres.NewSettingsRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM settings").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec("INSERT INTO settings").
			WithArgs(pgxmock.AnyArg(), "key-1234", domain.DefaultMarketplaceURL, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		s := &domain.Settings{APIKey: "key-1234", APIBaseURL: domain.DefaultMarketplaceURL}
		require.NoError(t, repo.Replace(context.Background(), s))
		assert.NotEmpty(t, s.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back when the insert fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := postgres.NewSettingsRepository(mock)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM settings").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec("INSERT INTO settings").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err = repo.Replace(context.Background(), &domain.Settings{APIKey: "k", APIBaseURL: "u"})
		var derr *domain.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, domain.ErrCodeStorage, derr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestActivityRepository(t *testing.T) {
	t.Run("Should append with generated id and timestamp", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := postgres.NewActivityRepository(mock)

		target := "u2"
		mock.ExpectExec("INSERT INTO activity_logs").
			WithArgs(pgxmock.AnyArg(), "u1", "approve_user", &target, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		entry := &domain.ActivityEntry{ActorID: "u1", Action: domain.ActionApproveUser, TargetUserID: &target}
		require.NoError(t, repo.Append(context.Background(), entry))
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.Timestamp.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should list newest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := postgres.NewActivityRepository(mock)

		var nilTarget *string
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM activity_logs ORDER BY timestamp DESC LIMIT 20").
			WillReturnRows(mock.NewRows([]string{"id", "user_id", "action", "target_user_id", "details", "timestamp"}).
				AddRow("a2", "u1", "logout", nilTarget, []byte(nil), now).
				AddRow("a1", "u1", "login", nilTarget, []byte(nil), now.Add(-time.Minute)))

		entries, err := repo.ListRecent(context.Background(), 20)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.ActionLogout, entries[0].Action)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
