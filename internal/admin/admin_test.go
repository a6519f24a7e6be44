package admin

import (
	"sync"
	"testing"

	"github.com/askr-bot/askr/internal/config"
	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (r *recordingSender) Send(action string, body map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, body)
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testConfig() config.Admin {
	return config.Admin{
		Enabled:          true,
		AdminID:          111,
		NotifyLevel:      "warn",
		RateLimitSeconds: 300,
		MessageFormat:    "[{level}] {message}",
	}
}

func TestDispatchMuteUnmute(t *testing.T) {
	c := New(testConfig(), &recordingSender{})

	handled := c.Dispatch(eventkind.RawEvent{
		"post_type": "message", "message_type": "private",
		"user_id": float64(111), "raw_message": "mute",
	})
	require.True(t, handled)
	require.True(t, c.Muted())

	handled = c.Dispatch(eventkind.RawEvent{
		"post_type": "message", "message_type": "private",
		"user_id": float64(111), "raw_message": "unmute",
	})
	require.True(t, handled)
	require.False(t, c.Muted())
}

func TestDispatchIgnoresNonAdmin(t *testing.T) {
	c := New(testConfig(), &recordingSender{})
	handled := c.Dispatch(eventkind.RawEvent{
		"post_type": "message", "message_type": "private",
		"user_id": float64(222), "raw_message": "mute",
	})
	require.False(t, handled)
	require.False(t, c.Muted())
}

func TestNotifyRespectsLevelThreshold(t *testing.T) {
	sender := &recordingSender{}
	c := New(testConfig(), sender)

	c.Notify("info", "below threshold")
	require.Equal(t, 0, sender.count())

	c.Notify("error", "above threshold")
	require.Equal(t, 1, sender.count())
}

func TestNotifyRateLimitsByMessageHash(t *testing.T) {
	sender := &recordingSender{}
	c := New(testConfig(), sender)

	c.Notify("error", "disk full")
	c.Notify("error", "disk full")
	require.Equal(t, 1, sender.count())

	c.Notify("error", "different message")
	require.Equal(t, 2, sender.count())
}

func TestNotifyNoopWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	sender := &recordingSender{}
	c := New(cfg, sender)

	c.Notify("error", "anything")
	require.Equal(t, 0, sender.count())
}
