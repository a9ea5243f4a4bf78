package resource

import (
	"context"
	"errors"
)

// ErrQueueClosed resolves handles of tasks that were still queued when
// their resource was torn down. Callers must not rely on
// queued-but-unstarted work surviving shutdown.
var ErrQueueClosed = errors.New("resource: queue closed")

// Handle is the completion side of one queued task. It resolves exactly
// once, with the task's error or nil.
type Handle struct {
	done chan struct{}
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// resolve must be called at most once.
func (h *Handle) resolve(err error) {
	h.err = err
	close(h.done)
}

// Done is closed when the task has finished (or was abandoned).
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task result. It must only be called after Done is
// closed; before that the result is not yet published.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return errors.New("resource: handle not resolved yet")
	}
}

// Wait blocks until the task finishes or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resolvedHandle(err error) *Handle {
	h := newHandle()
	h.resolve(err)
	return h
}
