package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestManager_Shutdown(t *testing.T) {
	t.Run("Should run hooks in reverse order once", func(t *testing.T) {
		m := New(0, nil)
		var order []string
		m.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
		m.RegisterCloser("buffer", closerFunc(func() error { order = append(order, "buffer"); return nil }))
		m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })

		require.NoError(t, m.Shutdown(context.Background()))
		require.NoError(t, m.Shutdown(context.Background()))
		assert.Equal(t, []string{"http", "buffer", "store"}, order)
	})

	t.Run("Should keep going and join errors", func(t *testing.T) {
		m := New(0, nil)
		ran := false
		m.Register("first", func(context.Context) error { ran = true; return nil })
		m.Register("broken", func(context.Context) error { return errors.New("boom") })

		err := m.Shutdown(context.Background())
		assert.ErrorContains(t, err, "boom")
		assert.True(t, ran)
	})
}
