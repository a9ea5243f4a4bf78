// Package heartbeat provides best-effort periodic callbacks tied to the
// lifetime of some other activity: "while this download runs, keep
// refreshing the progress message". The loops fire immediately on start,
// then once per interval, and stop within one interval of the activity
// finishing.
package heartbeat

import (
	"context"
	"time"
)

// RepeatUntilDone runs action now and then every interval until done is
// closed or ctx is cancelled. The action's own errors are its problem;
// the loop never stops because of them.
func RepeatUntilDone(ctx context.Context, interval time.Duration, done <-chan struct{}, action func(ctx context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		default:
		}

		action(ctx)

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RepeatWhileAlive is RepeatUntilDone keyed on a liveness predicate
// instead of a channel: it runs action now and then every interval for
// as long as alive reports true.
func RepeatWhileAlive(ctx context.Context, interval time.Duration, alive func() bool, action func(ctx context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for alive() {
		if ctx.Err() != nil {
			return
		}

		action(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
