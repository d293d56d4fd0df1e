// Package transport carries router and vehicle traffic over WebSockets
// (gorilla/websocket). Every connection writes from its own goroutine through
// a bounded send queue.
package transport

import (
	"errors"
	"sync"
)

var (
	// ErrNotConnected is returned when sending to a connection that is gone.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrQueueFull is returned by a DropNewest queue that has no room.
	ErrQueueFull = errors.New("transport: send queue full")
)

// Policy decides what a full send queue gives up.
type Policy int

const (
	// DropOldest discards the oldest queued item to admit the new one.
	DropOldest Policy = iota
	// DropNewest refuses the new item with ErrQueueFull.
	DropNewest
)

type message struct {
	kind int
	data []byte
}

// item is one or more messages that are written back to back and dropped
// together, such as a frame tag and its payload.
type item []message

type queue struct {
	mu      sync.Mutex
	items   []item
	limit   int
	policy  Policy
	dropped uint64
	closed  bool
	ready   chan struct{}
}

func newQueue(limit int, policy Policy) *queue {
	return &queue{limit: max(limit, 1), policy: policy, ready: make(chan struct{}, 1)}
}

func (q *queue) push(it item) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrNotConnected
	}
	if len(q.items) >= q.limit {
		if q.policy == DropNewest {
			q.dropped++
			q.mu.Unlock()
			return ErrQueueFull
		}
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// drain takes every queued item.
func (q *queue) drain() []item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

func (q *queue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
