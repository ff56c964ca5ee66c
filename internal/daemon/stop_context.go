package daemon

import (
	"context"
	"time"
)

// stopAwareContext returns a context that is canceled when either the parent
// context is done or Stop closes the daemon stop channel.
//
// Callers MUST call the returned cancel func when the derived context is no
// longer needed; otherwise the internal stop-listener goroutine may live for
// the lifetime of the parent context.
func (d *Daemon) stopAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-d.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// sleep waits dur on the daemon clock. It reports false when ctx ended first.
func (d *Daemon) sleep(ctx context.Context, dur time.Duration) bool {
	t := d.clock.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
