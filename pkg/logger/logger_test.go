package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("Should reject unknown levels", func(t *testing.T) {
		_, err := New(Config{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("Should build console and json loggers", func(t *testing.T) {
		for _, enc := range []string{"console", "json"} {
			log, err := New(Config{Level: "debug", Encoding: enc, Service: "sellerdesk"})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(zap.DebugLevel))
		}
	})
}

func TestWithRequestID(t *testing.T) {
	t.Run("Should attach request and user ids", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "req-1"), "u1")

		WithRequestID(ctx, zap.New(core)).Info("hello")

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "u1", fields["user_id"])
	})

	t.Run("Should return the base logger without ids", func(t *testing.T) {
		base := zap.NewNop()
		assert.Same(t, base, WithRequestID(context.Background(), base))
	})
}
