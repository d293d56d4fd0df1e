// Package device defines the line-oriented port used to talk to external
// microcontrollers such as a serial motor driver board.
package device

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when no line arrived within the read timeout.
	ErrTimeout = errors.New("device: read timeout")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("device: closed")
)

// Device defines an abstract interface for line-based communication devices.
type Device interface {
	// ReadLine reads a single line terminated by '\n', without the terminator.
	// If timeout > 0, it must return ErrTimeout after timeout even if no data available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by '\n' to the device.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	Close() error
}
