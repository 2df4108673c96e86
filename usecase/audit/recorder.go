// Package audit appends activity log entries without ever failing the caller.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/usecase"
)

type Recorder struct {
	activity repository.ActivityRepository
	buffer   usecase.OperationBuffer
	logger   *zap.Logger
	now      func() time.Time
}

func NewRecorder(activity repository.ActivityRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		activity: activity,
		buffer:   buffer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one entry. On failure it hands the entry to the replay buffer, which retries
// once and then persists it; without a buffer it retries once itself. Loss is only logged.
func (r *Recorder) Record(ctx context.Context, actorID string, action domain.Action, target *string, details map[string]any) {
	entry := &domain.ActivityEntry{
		ID:           uuid.NewString(),
		ActorID:      actorID,
		Action:       action,
		TargetUserID: target,
		Timestamp:    r.now(),
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}

	err := r.activity.Append(ctx, entry)
	if err == nil {
		return
	}
	log := r.logger.With(
		zap.String("action", string(action)),
		zap.String("actor_id", actorID),
		zap.String("entry_id", entry.ID),
	)

	if r.buffer != nil {
		if bufErr := r.buffer.BufferActivity(ctx, entry); bufErr != nil {
			log.Error("audit entry lost", zap.Error(err), zap.NamedError("buffer_error", bufErr))
			return
		}
		log.Warn("audit append failed, entry handed to replay buffer", zap.Error(err))
		return
	}

	if retryErr := r.activity.Append(ctx, entry); retryErr != nil {
		log.Error("audit entry lost", zap.Error(err), zap.NamedError("retry_error", retryErr))
	}
}

// ListRecent returns the newest entries first.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.activity.ListRecent(ctx, limit)
}
