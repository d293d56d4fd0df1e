// Package guard provides a single-writer/multi-reader cell whose lock is
// acquired with a short timeout. A reader that cannot get the lock in time
// proceeds with the last value it read successfully.
package guard

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned when the lock could not be acquired in time.
var ErrTimeout = errors.New("guard: lock timeout")

// Value holds one T behind a timed lock.
type Value[T any] struct {
	sem          chan struct{}
	val          T
	readTimeout  time.Duration
	writeTimeout time.Duration
	timeouts     atomic.Uint64
}

// New returns a Value initialised with v.
func New[T any](v T, readTimeout, writeTimeout time.Duration) *Value[T] {
	g := &Value[T]{
		sem:          make(chan struct{}, 1),
		val:          v,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
	return g
}

func (g *Value[T]) acquire(d time.Duration) bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
	}
	if d <= 0 {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case g.sem <- struct{}{}:
		return true
	case <-t.C:
		g.timeouts.Add(1)
		return false
	}
}

func (g *Value[T]) release() { <-g.sem }

// Store replaces the value. It returns ErrTimeout, leaving the old value, if
// the lock is held past the write timeout.
func (g *Value[T]) Store(v T) error {
	if !g.acquire(g.writeTimeout) {
		return ErrTimeout
	}
	g.val = v
	g.release()
	return nil
}

// Load returns the current value, or ErrTimeout with the zero value.
func (g *Value[T]) Load() (T, error) {
	if !g.acquire(g.readTimeout) {
		var zero T
		return zero, ErrTimeout
	}
	v := g.val
	g.release()
	return v, nil
}

// Timeouts counts failed lock acquisitions.
func (g *Value[T]) Timeouts() uint64 { return g.timeouts.Load() }

// Reader remembers the last successfully loaded value of a Value. Each
// reading goroutine owns its own Reader.
type Reader[T any] struct {
	src   *Value[T]
	last  T
	stale bool
}

// NewReader binds a reader to src with fallback as the value used before the
// first successful read.
func NewReader[T any](src *Value[T], fallback T) *Reader[T] {
	return &Reader[T]{src: src, last: fallback}
}

// Read returns a fresh value, or the last good one when the lock timed out.
func (r *Reader[T]) Read() T {
	v, err := r.src.Load()
	if err != nil {
		r.stale = true
		return r.last
	}
	r.stale = false
	r.last = v
	return v
}

// Stale reports whether the latest Read fell back to the remembered value.
func (r *Reader[T]) Stale() bool { return r.stale }
