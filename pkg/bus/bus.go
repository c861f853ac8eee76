// Package bus carries platform events from the SDK callback goroutine to the
// bridge loop in arrival order.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrQueueClosed is returned when publishing to a closed Queue.
var ErrQueueClosed = errors.New("event queue closed")

type Queue struct {
	events chan Event
	done   chan struct{}
	closed atomic.Bool
}

func NewQueue() *Queue {
	return &Queue{
		events: make(chan Event, 100),
		done:   make(chan struct{}),
	}
}

func (q *Queue) Publish(ctx context.Context, ev Event) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.events <- ev:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Consume(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-q.events:
		return ev, ok
	case <-q.done:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.done)
	}
}
