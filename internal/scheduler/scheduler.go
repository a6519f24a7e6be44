// Package scheduler runs every plugin handler registered against the
// UNCONDITIONAL event key on a per-minute cadence, independent of any
// inbound chat traffic.
package scheduler

import (
	"context"
	"time"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
	"github.com/askr-bot/askr/internal/outbound"
	"github.com/askr-bot/askr/internal/plugins"
	"github.com/robfig/cron/v3"
)

// Scheduler ticks once every minute, three seconds past the minute mark —
// the same offset the framework has always used to dodge clock-rounding
// flukes at the boundary — and fires every handler whose declared interval
// divides the current minute.
type Scheduler struct {
	cron     *cron.Cron
	registry *plugins.Registry
	runEvery RunFunc
	muted    func() bool
	sender   outbound.Sender
}

// RunFunc dispatches the due handlers and passes each result value to
// onResult for outbound parsing.
type RunFunc func(ctx context.Context, handlers []plugins.BoundHandler, raw eventkind.RawEvent, onResult func(value any))

// New builds a Scheduler. muted is consulted at the top of every tick; a
// muted bot skips the tick entirely, same as the mute flag gating the
// legacy scheduler loop.
func New(registry *plugins.Registry, run RunFunc, muted func() bool) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		runEvery: run,
		muted:    muted,
	}
}

// Start registers the per-minute job and begins running it in the
// background. Call Stop to end it.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("3 * * * * *", s.tick)
	if err != nil {
		return err
	}
	s.cron.Start()
	logger.Scheduler().Info().Msg("unconditional scheduler started")
	return nil
}

// Stop ends the cron loop and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) tick() {
	if s.muted != nil && s.muted() {
		return
	}
	if !s.registry.HasUnconditionals() {
		return
	}

	minute := time.Now().Minute()
	handlers := s.registry.Unconditionals(minute)
	if len(handlers) == 0 {
		return
	}

	raw := eventkind.RawEvent{
		"post_type": "unconditional",
		"time":      float64(time.Now().Unix()),
	}

	logger.Scheduler().Debug().Int("minute", minute).Int("due", len(handlers)).Msg("running unconditional handlers")

	s.runEvery(context.Background(), handlers, raw, func(value any) {
		outbound.Parse(s.sender, value, eventkind.Kind("unconditional"), raw)
	})
}

// SetSender wires the outbound gateway sender used for results produced by
// unconditional handlers.
func (s *Scheduler) SetSender(sender outbound.Sender) {
	s.sender = sender
}
