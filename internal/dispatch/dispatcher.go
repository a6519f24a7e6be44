// Package dispatch implements the Parallel Dispatcher: it runs every
// matching handler for an event concurrently, each in its own sandbox, and
// streams completed results to a callback as they arrive while also
// returning the full set in original registration order.
package dispatch

import (
	"context"
	"time"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/askr-bot/askr/internal/sandbox"
)

// Runner is the subset of sandbox.Runner the dispatcher depends on.
type Runner interface {
	Run(ctx context.Context, h plugins.BoundHandler, simple *eventkind.SimpleEvent, raw eventkind.RawEvent) sandbox.Outcome
}

// ResultCallback is invoked once per handler, in completion order, for
// every outcome whose Kind is OutcomeOK and whose Value is non-nil — a nil
// reply means "this handler chose not to respond" and never reaches the
// callback.
type ResultCallback func(outcome sandbox.Outcome)

// Dispatcher fans an event out to every matching handler.
type Dispatcher struct {
	runner  Runner
	wallCap time.Duration
}

// New builds a Dispatcher. wallCap is the per-handler wall-clock cap; the
// dispatcher itself waits wallCap+5s for the slowest straggler before
// giving up on it.
func New(runner Runner, wallCap time.Duration) *Dispatcher {
	return &Dispatcher{runner: runner, wallCap: wallCap}
}

// Dispatch spawns one sandbox per handler concurrently — concurrency is
// unbounded by design; the per-handler resource caps are the only limit.
// It streams each completed outcome to onResult as soon as it arrives, and
// returns the complete set of outcomes indexed by handlers' original
// order. A handler that hasn't reported within wallCap+5s is represented
// by a synthetic OutcomeWallCap outcome in the returned slice and is never
// passed to onResult.
func (d *Dispatcher) Dispatch(ctx context.Context, handlers []plugins.BoundHandler, simple *eventkind.SimpleEvent, raw eventkind.RawEvent, onResult ResultCallback) []sandbox.Outcome {
	ordered := make([]sandbox.Outcome, len(handlers))
	if len(handlers) == 0 {
		return ordered
	}

	type indexed struct {
		index   int
		outcome sandbox.Outcome
	}
	results := make(chan indexed, len(handlers))

	for i, h := range handlers {
		go func(i int, h plugins.BoundHandler) {
			outcome := d.runner.Run(ctx, h, simple, raw)
			results <- indexed{index: i, outcome: outcome}
		}(i, h)
	}

	timeout := time.NewTimer(d.wallCap + 5*time.Second)
	defer timeout.Stop()

	received := 0
	for received < len(handlers) {
		select {
		case r := <-results:
			received++
			ordered[r.index] = r.outcome
			if r.outcome.Kind == sandbox.OutcomeOK && r.outcome.Value != nil && onResult != nil {
				onResult(r.outcome)
			}

		case <-timeout.C:
			logger.Dispatch().Warn().
				Int("completed", received).
				Int("total", len(handlers)).
				Msg("dispatch timed out waiting for handler results")
			for i := range ordered {
				if ordered[i] == (sandbox.Outcome{}) {
					ordered[i] = sandbox.Outcome{
						PluginName: handlers[i].PluginName,
						SymbolName: handlers[i].SymbolName,
						Kind:       sandbox.OutcomeWallCap,
					}
				}
			}
			return ordered
		}
	}

	return ordered
}
