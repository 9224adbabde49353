package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per control period.
type TickFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives periodic execution of the control cycle. Ticks that are
// already in the past when the previous cycle returns are dropped, not queued.
type Scheduler struct {
	opts    Options
	logger  zerolog.Logger
	ticks   atomic.Int64
	skipped atomic.Int64
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if delay := time.Until(next); delay < 0 {
			missed := int64(-delay/s.opts.Interval) + 1
			s.skipped.Add(missed)
			s.logger.Warn().Int64("missed", missed).Dur("late", -delay).Msg("control cycle overran its period")
			next = next.Add(time.Duration(missed) * s.opts.Interval)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.ticks.Add(1)
		if err := tick(ctx, s.tickStart(next)); err != nil {
			s.logger.Debug().Err(err).Time("tick", next).Msg("control cycle failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

// Ticks returns how many ticks were executed.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// Skipped returns how many ticks were dropped because a cycle overran.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}

func (s *Scheduler) tickStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
