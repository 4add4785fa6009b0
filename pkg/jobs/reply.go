package jobs

import (
	"context"
	"sync"
)

// Reply is a single-use, single-value delivery slot bound to exactly one
// command. Handlers must either Fulfill or Drop every slot they receive,
// on every exit path; a slot is never left pending.
type Reply[T any] struct {
	ch   chan T
	once sync.Once
}

// NewReply creates an unfulfilled reply slot.
func NewReply[T any]() *Reply[T] {
	return &Reply[T]{ch: make(chan T, 1)}
}

// Fulfill delivers the value to the waiter. Only the first call has any
// effect; it never blocks.
func (r *Reply[T]) Fulfill(v T) {
	r.once.Do(func() {
		r.ch <- v
		close(r.ch)
	})
}

// Drop abandons the slot without a value. Waiters receive ErrReplyDropped.
func (r *Reply[T]) Drop() {
	r.once.Do(func() {
		close(r.ch)
	})
}

// Wait blocks until the slot is fulfilled, dropped, or ctx expires.
func (r *Reply[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v, ok := <-r.ch:
		if !ok {
			var zero T
			return zero, ErrReplyDropped
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
