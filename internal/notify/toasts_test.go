package notify_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"client_go/internal/notify"
)

func TestToasts(t *testing.T) {
	clk := clock.NewMock()
	toasts := notify.NewToasts(clk, 5*time.Second, zerolog.Nop())

	first := toasts.Push(notify.LevelInfo, 0, "connected")
	clk.Add(3 * time.Second)
	toasts.Error(7, "Message failed to send.")

	active := toasts.Active()
	require.Len(t, active, 2)
	assert.Equal(t, notify.LevelError, active[1].Level)
	assert.Equal(t, int64(7), active[1].ConversationID)

	t.Run("Expire", func(t *testing.T) {
		clk.Add(2 * time.Second)
		active := toasts.Active()
		require.Len(t, active, 1)
		assert.Equal(t, "Message failed to send.", active[0].Message)
	})

	t.Run("Dismiss", func(t *testing.T) {
		assert.False(t, toasts.Dismiss(first.ID))
		id := toasts.Active()[0].ID
		assert.True(t, toasts.Dismiss(id))
		assert.Empty(t, toasts.Active())
	})

	t.Run("Reset", func(t *testing.T) {
		toasts.Error(1, "x")
		toasts.Reset()
		assert.Empty(t, toasts.Active())
	})
}
