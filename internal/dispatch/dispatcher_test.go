package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/askr-bot/askr/internal/sandbox"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	delays  map[string]time.Duration
	outcome map[string]sandbox.Outcome
}

func (f *fakeRunner) Run(ctx context.Context, h plugins.BoundHandler, simple *eventkind.SimpleEvent, raw eventkind.RawEvent) sandbox.Outcome {
	if d, ok := f.delays[h.Identity()]; ok {
		time.Sleep(d)
	}
	if o, ok := f.outcome[h.Identity()]; ok {
		return o
	}
	return sandbox.Outcome{PluginName: h.PluginName, SymbolName: h.SymbolName, Kind: sandbox.OutcomeOK, Value: "ok"}
}

func TestDispatchStreamsAndOrdersResults(t *testing.T) {
	handlers := []plugins.BoundHandler{
		{PluginName: "a", SymbolName: "Fast"},
		{PluginName: "b", SymbolName: "Slow"},
	}
	runner := &fakeRunner{
		delays: map[string]time.Duration{
			"b#Slow": 30 * time.Millisecond,
		},
	}
	d := New(runner, 2*time.Second)

	var streamed []string
	results := d.Dispatch(context.Background(), handlers, nil, map[string]any{}, func(o sandbox.Outcome) {
		streamed = append(streamed, o.PluginName)
	})

	require.Len(t, results, 2)
	require.Equal(t, sandbox.OutcomeOK, results[0].Kind)
	require.Equal(t, sandbox.OutcomeOK, results[1].Kind)
	require.Equal(t, []string{"a", "b"}, streamed)
}

func TestDispatchSkipsNilValueInCallback(t *testing.T) {
	handlers := []plugins.BoundHandler{{PluginName: "a", SymbolName: "Silent"}}
	runner := &fakeRunner{
		outcome: map[string]sandbox.Outcome{
			"a#Silent": {PluginName: "a", SymbolName: "Silent", Kind: sandbox.OutcomeOK, Value: nil},
		},
	}
	d := New(runner, time.Second)

	called := false
	results := d.Dispatch(context.Background(), handlers, nil, map[string]any{}, func(o sandbox.Outcome) {
		called = true
	})

	require.False(t, called)
	require.Len(t, results, 1)
}

func TestDispatchTimesOutOnStraggler(t *testing.T) {
	handlers := []plugins.BoundHandler{
		{PluginName: "a", SymbolName: "Fast"},
		{PluginName: "b", SymbolName: "Hung"},
	}
	runner := &fakeRunner{
		delays: map[string]time.Duration{
			"b#Hung": 500 * time.Millisecond,
		},
	}
	// wallCap is negative so the dispatcher's wallCap+5s budget shrinks to a
	// window the straggler's 500ms delay will miss, without the test itself
	// waiting a full 5 seconds.
	d := New(runner, -4900*time.Millisecond)

	results := d.Dispatch(context.Background(), handlers, nil, map[string]any{}, nil)

	require.Len(t, results, 2)
	require.Equal(t, sandbox.OutcomeOK, results[0].Kind)
	require.Equal(t, sandbox.OutcomeWallCap, results[1].Kind)
}

func TestDispatchEmptyHandlerList(t *testing.T) {
	d := New(&fakeRunner{}, time.Second)
	results := d.Dispatch(context.Background(), nil, nil, map[string]any{}, nil)
	require.Empty(t, results)
}
