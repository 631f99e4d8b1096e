// Package poll provides a fixed-interval, bounded-attempt polling utility
// for tracking external asynchronous jobs to a terminal state.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when the attempt ceiling is reached before the
// check reports a terminal state.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Check inspects the polled job once. done=true ends the poll successfully;
// a non-nil error ends it with that error.
type Check func(ctx context.Context) (done bool, err error)

// Poller repeatedly runs a Check on a fixed interval until it reports a
// terminal state, fails, or the attempt ceiling is hit.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// Do runs check up to MaxAttempts times, sleeping Interval between
// attempts (not after the last). The total wall-clock time is bounded by
// MaxAttempts * Interval regardless of the job's outcome.
func (p Poller) Do(ctx context.Context, check Check) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrExhausted
}
