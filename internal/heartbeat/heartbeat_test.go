package heartbeat_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/denyshon/tg-load/internal/heartbeat"
	"github.com/stretchr/testify/require"
)

func TestRepeatUntilDone_FiresImmediately(t *testing.T) {
	t.Parallel()
	var count atomic.Int64
	done := make(chan struct{})

	go heartbeat.RepeatUntilDone(context.Background(), time.Hour, done,
		func(context.Context) { count.Add(1) })

	require.Eventually(t, func() bool { return count.Load() == 1 },
		2*time.Second, 5*time.Millisecond,
		"action must fire once before the first interval elapses")
	close(done)
}

func TestRepeatUntilDone_StopsAfterDone(t *testing.T) {
	t.Parallel()
	var count atomic.Int64
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		heartbeat.RepeatUntilDone(context.Background(), 5*time.Millisecond, done,
			func(context.Context) { count.Add(1) })
		close(finished)
	}()

	require.Eventually(t, func() bool { return count.Load() >= 3 },
		2*time.Second, time.Millisecond)
	close(done)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after done")
	}
}

func TestRepeatUntilDone_StopsOnContext(t *testing.T) {
	t.Parallel()
	ctx, canc := context.WithCancel(context.Background())
	canc()

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		heartbeat.RepeatUntilDone(ctx, time.Hour, done,
			func(context.Context) { t.Error("action must not fire on a dead context") })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancelled context")
	}
}

func TestRepeatWhileAlive_StopsWhenDead(t *testing.T) {
	t.Parallel()
	var count atomic.Int64
	alive := func() bool { return count.Load() < 3 }

	finished := make(chan struct{})
	go func() {
		heartbeat.RepeatWhileAlive(context.Background(), time.Millisecond, alive,
			func(context.Context) { count.Add(1) })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after liveness went false")
	}
	require.Equal(t, int64(3), count.Load())
}

func TestRepeatWhileAlive_NeverAlive(t *testing.T) {
	t.Parallel()
	heartbeat.RepeatWhileAlive(context.Background(), time.Millisecond,
		func() bool { return false },
		func(context.Context) { t.Error("action must not fire when never alive") })
}
