package device

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

type lineResult struct {
	line string
	err  error
}

// SerialDevice implements Device using go.bug.st/serial. A single goroutine
// owns the read side and hands complete lines to ReadLine.
type SerialDevice struct {
	port  serial.Port
	lines chan lineResult
	mu    sync.Mutex
	done  chan struct{}
	once  sync.Once
}

// NewSerialDevice opens dev at baud, 8N1.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", dev, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("reset serial %s: %w", dev, err)
	}
	s := &SerialDevice{
		port:  p,
		lines: make(chan lineResult, 16),
		done:  make(chan struct{}),
	}
	go s.readLoop(bufio.NewReader(p))
	return s, nil
}

func (s *SerialDevice) readLoop(r *bufio.Reader) {
	defer close(s.lines)
	for {
		line, err := r.ReadString('\n')
		res := lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
		select {
		case s.lines <- res:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// ReadLine returns the next line from the port.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	var after <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case res, ok := <-s.lines:
		if !ok {
			return "", ErrClosed
		}
		return res.line, res.err
	case <-after:
		return "", ErrTimeout
	}
}

// WriteLine writes a line followed by newline.
func (s *SerialDevice) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	_, err := s.port.Write(append([]byte(line), '\n'))
	return err
}

// Close closes the underlying serial port. It is safe to call twice.
func (s *SerialDevice) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}
