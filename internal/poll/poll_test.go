package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoCompletesOnTerminalState(t *testing.T) {
	t.Parallel()

	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 10}
	err := p.Do(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 5}
	err := p.Do(context.Background(), func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected 5 calls, got %d", calls)
	}
}

func TestDoPropagatesCheckError(t *testing.T) {
	t.Parallel()

	boom := errors.New("job failed")
	p := Poller{Interval: time.Millisecond, MaxAttempts: 5}
	err := p.Do(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Poller{Interval: time.Hour, MaxAttempts: 10}
	go cancel()
	err := p.Do(ctx, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoBoundedWallClock(t *testing.T) {
	t.Parallel()

	p := Poller{Interval: 2 * time.Millisecond, MaxAttempts: 5}
	start := time.Now()
	_ = p.Do(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("poll took too long: %v", elapsed)
	}
}
