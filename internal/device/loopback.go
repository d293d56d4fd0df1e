package device

import (
	"sync"
	"time"
)

// Responder computes the reply to one written line. An empty reply sends nothing.
type Responder func(line string) string

// Loopback is an in-process Device that answers every WriteLine through a
// Responder. It stands in for a motor controller board in simulation and tests.
type Loopback struct {
	respond Responder
	replies chan string

	mu      sync.Mutex
	written []string
	closed  bool
	failErr error
}

// NewLoopback returns a Loopback using respond; nil means no replies.
func NewLoopback(respond Responder) *Loopback {
	return &Loopback{respond: respond, replies: make(chan string, 64)}
}

// FailWrites makes subsequent writes return err; nil clears the failure.
func (l *Loopback) FailWrites(err error) {
	l.mu.Lock()
	l.failErr = err
	l.mu.Unlock()
}

// Written returns a copy of every line written so far.
func (l *Loopback) Written() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.written...)
}

// WriteLine records s and queues the responder's reply.
func (l *Loopback) WriteLine(s string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.failErr != nil {
		err := l.failErr
		l.mu.Unlock()
		return err
	}
	l.written = append(l.written, s)
	l.mu.Unlock()

	if l.respond == nil {
		return nil
	}
	if reply := l.respond(s); reply != "" {
		select {
		case l.replies <- reply:
		default:
		}
	}
	return nil
}

// ReadLine returns the next queued reply.
func (l *Loopback) ReadLine(timeout time.Duration) (string, error) {
	var after <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case r := <-l.replies:
		return r, nil
	case <-after:
		return "", ErrTimeout
	}
}

// Close marks the device closed.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
