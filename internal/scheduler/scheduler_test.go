package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunInvokesTickUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("tick errors do not stop the loop")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 3 || s.Ticks() != 3 {
		t.Fatalf("expected 3 ticks, got calls=%d ticks=%d", calls, s.Ticks())
	}
}

func TestRunSkipsOverrunTicks(t *testing.T) {
	s := New(Options{Interval: 2 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_ = s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		calls++
		if calls == 1 {
			time.Sleep(15 * time.Millisecond)
			return nil
		}
		cancel()
		return nil
	})

	if s.Skipped() == 0 {
		t.Fatal("expected overrun ticks to be counted as skipped")
	}
	if calls != 2 {
		t.Fatalf("skipped ticks must not be replayed, got %d calls", calls)
	}
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	s := New(Options{Interval: time.Millisecond, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		t.Fatal("tick must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 100 * time.Millisecond, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 130*int(time.Millisecond), time.UTC)

	next := s.nextTick(now)
	want := time.Date(2026, 1, 1, 0, 0, 0, 200*int(time.Millisecond), time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
