package outbound

import (
	"context"
	"log/slog"
	"time"
)

// DefaultFragmentDelay is the pause between consecutive fragments. It keeps
// multi-part replies arriving in a readable cadence on the recipient's end.
const DefaultFragmentDelay = 700 * time.Millisecond

// Dispatcher splits a reply and sends the fragments strictly in order.
type Dispatcher struct {
	fragmentLimit int
	fragmentDelay time.Duration
	logger        *slog.Logger
	sleep         func(time.Duration)
}

// NewDispatcher creates a dispatcher. Non-positive limit and delay fall
// back to the defaults.
func NewDispatcher(log *slog.Logger, fragmentLimit int, fragmentDelay time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if fragmentLimit <= 0 {
		fragmentLimit = DefaultFragmentLimit
	}
	if fragmentDelay <= 0 {
		fragmentDelay = DefaultFragmentDelay
	}
	return &Dispatcher{
		fragmentLimit: fragmentLimit,
		fragmentDelay: fragmentDelay,
		logger:        log.With(slog.String("component", "outbound")),
		sleep:         time.Sleep,
	}
}

// Dispatch splits text and sends each fragment through sender, pausing
// between fragments but not after the last. A failed fragment is logged and
// the remaining fragments are still attempted. The number of successfully
// sent fragments is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Sender, to, text string) int {
	fragments := Split(text, d.fragmentLimit)
	sent := 0
	for i, fragment := range fragments {
		if err := sender.Send(ctx, to, fragment); err != nil {
			d.logger.Error("fragment send failed",
				slog.String("to", to),
				slog.Int("fragment", i+1),
				slog.Int("total", len(fragments)),
				slog.Any("error", err),
			)
		} else {
			sent++
		}
		if i < len(fragments)-1 {
			d.sleep(d.fragmentDelay)
		}
	}
	return sent
}
