package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/usecase"
)

type memoryActivity struct {
	failures int
	calls    int
	entries  []domain.ActivityEntry
}

func (m *memoryActivity) Append(_ context.Context, entry *domain.ActivityEntry) error {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("write failed")
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivity) ListRecent(_ context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[:limit], nil
}

type captureBuffer struct {
	entries []domain.ActivityEntry
	err     error
}

func (c *captureBuffer) BufferActivity(_ context.Context, entry *domain.ActivityEntry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, *entry)
	return nil
}

func (c *captureBuffer) BufferCacheWrite(context.Context, usecase.CacheWrite) error { return nil }

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	target := "u2"

	t.Run("Should append entries with details", func(t *testing.T) {
		activity := &memoryActivity{}
		r := NewRecorder(activity, nil, nil)
		r.Record(ctx, "u1", domain.ActionPromoteAdmin, &target, map[string]any{"previous_role": "user"})

		require.Len(t, activity.entries, 1)
		entry := activity.entries[0]
		assert.Equal(t, "u1", entry.ActorID)
		assert.Equal(t, &target, entry.TargetUserID)
		assert.JSONEq(t, `{"previous_role":"user"}`, string(entry.Details))
		assert.NotEmpty(t, entry.ID)
	})

	t.Run("Should retry once without a buffer", func(t *testing.T) {
		activity := &memoryActivity{failures: 1}
		NewRecorder(activity, nil, nil).Record(ctx, "u1", domain.ActionBanUser, &target, nil)
		assert.Equal(t, 2, activity.calls)
		assert.Len(t, activity.entries, 1)
	})

	t.Run("Should hand failures to the buffer with the same id", func(t *testing.T) {
		activity := &memoryActivity{failures: 5}
		buf := &captureBuffer{}
		NewRecorder(activity, buf, nil).Record(ctx, "u1", domain.ActionUnbanUser, &target, nil)

		assert.Equal(t, 1, activity.calls)
		require.Len(t, buf.entries, 1)
		assert.Equal(t, domain.ActionUnbanUser, buf.entries[0].Action)
	})

	t.Run("Should log and swallow a lost entry", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		activity := &memoryActivity{failures: 5}
		buf := &captureBuffer{err: errors.New("disk full")}
		NewRecorder(activity, buf, zap.New(core)).Record(ctx, "u1", domain.ActionLogin, nil, nil)

		assert.Equal(t, 1, logs.FilterMessage("audit entry lost").Len())
	})
}
