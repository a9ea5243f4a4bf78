package resource

import (
	"context"
	"fmt"
	"sync"
)

// Operation is one unit of queued work. It runs on the queue's consumer
// goroutine; the ctx it receives is cancelled when the queue closes.
type Operation func(ctx context.Context) error

type task struct {
	op Operation
	h  *Handle
}

// Queue serializes arbitrary operations on one resource: a single
// consumer goroutine runs tasks strictly in enqueue order, never two at
// a time. Enqueue is safe from many goroutines and never blocks the
// caller; the queue is unbounded.
//
// The consumer starts lazily on the first enqueue and lives until
// Close. An operation error resolves only its own handle — the consumer
// keeps going, so one bad mutation cannot wedge the resource.
type Queue struct {
	mu      sync.Mutex
	pending []task
	started bool
	closed  bool

	wake chan struct{}

	ctx  context.Context
	canc context.CancelFunc
	wg   sync.WaitGroup
}

func NewQueue() *Queue {
	ctx, canc := context.WithCancel(context.Background())
	return &Queue{
		wake: make(chan struct{}, 1),
		ctx:  ctx,
		canc: canc,
	}
}

// Enqueue appends op and returns immediately with a handle the caller
// can await. Ordering is determined purely by enqueue order, not by
// when handles are awaited.
func (q *Queue) Enqueue(op Operation) *Handle {
	if op == nil {
		return resolvedHandle(fmt.Errorf("resource: nil operation"))
	}

	h := newHandle()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		h.resolve(ErrQueueClosed)
		return h
	}
	q.pending = append(q.pending, task{op: op, h: h})
	if !q.started {
		q.started = true
		q.wg.Add(1)
		go q.consume()
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return h
}

// Close stops the consumer. The in-flight task (if any) runs to
// completion; queued-but-unstarted tasks resolve with ErrQueueClosed.
// Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	q.mu.Unlock()

	q.canc()
	if started {
		q.wg.Wait()
	}
}

func (q *Queue) consume() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.abandonPending()
			return
		default:
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
			case <-q.ctx.Done():
				q.abandonPending()
				return
			}
			continue
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		t.h.resolve(q.runTask(t.op))
	}
}

func (q *Queue) runTask(op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resource: operation panic: %v", r)
		}
	}()
	return op(q.ctx)
}

func (q *Queue) abandonPending() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, t := range pending {
		t.h.resolve(ErrQueueClosed)
	}
}
