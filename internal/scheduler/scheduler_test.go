package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/stretchr/testify/require"
)

func newTestRegistryWithUnconditional(t *testing.T, interval int) *plugins.Registry {
	t.Helper()
	reg := plugins.NewRegistry()
	manifest := plugins.Manifest{
		"UNCONDITIONAL": []any{"Tick", float64(interval)},
	}
	err := reg.Register("every", manifest, func(symbol string) (plugins.HandlerFunc, bool) {
		return func(ctx *plugins.HandlerContext) (any, error) { return "ticked", nil }, true
	})
	require.NoError(t, err)
	return reg
}

func TestTickSkipsWhenMuted(t *testing.T) {
	reg := newTestRegistryWithUnconditional(t, 1)

	var ran bool
	var mu sync.Mutex
	run := func(ctx context.Context, handlers []plugins.BoundHandler, raw eventkind.RawEvent, onResult func(value any)) {
		mu.Lock()
		ran = true
		mu.Unlock()
	}

	s := New(reg, run, func() bool { return true })
	s.tick()

	mu.Lock()
	defer mu.Unlock()
	require.False(t, ran)
}

func TestTickRunsDueHandlers(t *testing.T) {
	reg := newTestRegistryWithUnconditional(t, 1)

	called := make(chan []plugins.BoundHandler, 1)
	run := func(ctx context.Context, handlers []plugins.BoundHandler, raw eventkind.RawEvent, onResult func(value any)) {
		called <- handlers
		onResult("ticked")
	}

	s := New(reg, run, func() bool { return false })
	s.tick()

	select {
	case handlers := <-called:
		require.Len(t, handlers, 1)
		require.Equal(t, "every", handlers[0].PluginName)
	case <-time.After(time.Second):
		t.Fatal("tick did not invoke the run function")
	}
}

func TestTickSkipsWhenNoUnconditionalsRegistered(t *testing.T) {
	reg := plugins.NewRegistry()

	var ran bool
	run := func(ctx context.Context, handlers []plugins.BoundHandler, raw eventkind.RawEvent, onResult func(value any)) {
		ran = true
	}

	s := New(reg, run, func() bool { return false })
	s.tick()

	require.False(t, ran)
}
