package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

type activityRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Action       string    `db:"action"`
	TargetUserID *string   `db:"target_user_id"`
	Details      []byte    `db:"details"`
	Timestamp    time.Time `db:"timestamp"`
}

type activityRepository struct {
	db DB
}

// NewActivityRepository returns the append-only audit log table.
func NewActivityRepository(db DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	if entry == nil || entry.ActorID == "" || !entry.Action.Valid() {
		return domain.ErrInvalidPayload
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query, args, err := psql.Insert("activity_logs").
		Columns("id", "user_id", "action", "target_user_id", "details", "timestamp").
		Values(entry.ID, entry.ActorID, string(entry.Action), entry.TargetUserID, nullBytes(entry.Details), entry.Timestamp).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return domain.StorageError("append activity", err)
	}
	return nil
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	query, args, err := psql.Select("id", "user_id", "action", "target_user_id", "details", "timestamp").
		From("activity_logs").
		OrderBy("timestamp DESC").
		Limit(uint64(clampLimit(limit))).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []activityRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, domain.StorageError("list activity", err)
	}

	entries := make([]domain.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ActivityEntry{
			ID:           row.ID,
			ActorID:      row.UserID,
			Action:       domain.Action(row.Action),
			TargetUserID: row.TargetUserID,
			Details:      row.Details,
			Timestamp:    row.Timestamp,
		})
	}
	return entries, nil
}
