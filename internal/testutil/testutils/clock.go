package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// Drive advances clk in step increments, each time waiting for a goroutine
// to block on the clock, until done is closed. It fails the test if nothing
// waits on the clock for timeout.
func Drive(t *testing.T, clk *clockwork.FakeClock, step time.Duration, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	for {
		select {
		case <-done:
			return
		default:
		}
		if err := clk.BlockUntilContext(ctx, 1); err != nil {
			select {
			case <-done:
				return
			default:
				t.Fatalf("clock never blocked: %v", err)
			}
		}
		clk.Advance(step)
	}
}

// DriveUntil is Drive with a predicate instead of a channel.
func DriveUntil(t *testing.T, clk *clockwork.FakeClock, step time.Duration, cond func() bool) {
	t.Helper()
	for i := 0; !cond(); i++ {
		if i > 100000 {
			t.Fatalf("condition not reached")
		}
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
		err := clk.BlockUntilContext(ctx, 1)
		cancel()
		if err != nil {
			if cond() {
				return
			}
			t.Fatalf("clock never blocked: %v", err)
		}
		clk.Advance(step)
	}
}
