// Package mailbox provides the unbounded FIFO inboxes that connect the
// engine and the participants. Push never blocks and never drops, which is
// what gives notification delivery its at-least-once, in-order guarantee per
// recipient.
package mailbox

import (
	"context"
	"sync"
)

// Mailbox is an unbounded FIFO queue safe for concurrent use.
type Mailbox[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{wake: make(chan struct{}, 1)}
}

// Push appends an item. It never blocks.
func (m *Mailbox[T]) Push(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Poll removes and returns the oldest item without blocking. The second
// return value is false when the mailbox is empty.
func (m *Mailbox[T]) Poll() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		var zero T
		return zero, false
	}
	v := m.items[0]
	m.items = m.items[1:]
	return v, true
}

// Receive blocks until an item is available or the context is done. The
// second return value is false when the context ended first.
func (m *Mailbox[T]) Receive(ctx context.Context) (T, bool) {
	for {
		if v, ok := m.Poll(); ok {
			return v, true
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-m.wake:
		}
	}
}

// Wake returns a channel that fires when new items may be available. It is
// intended for select loops that drain with Poll.
func (m *Mailbox[T]) Wake() <-chan struct{} { return m.wake }

// Len reports the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
