package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"RoverLink/internal/vision"
)

// SyntheticConfig describes the generated scene: a black background with one
// filled square of TargetColor.
type SyntheticConfig struct {
	Width       int
	Height      int
	TargetColor string // color preset name, empty for no target
	TargetSize  int    // square side in pixels
	Motion      string // static, sweep or approach
	PeriodMs    int    // minimum time between frames, 0 for free-running
	MissEvery   int    // every Nth Acquire returns ErrNoFrame, 0 never
	Buffers     int    // frames that can be outstanding at once
}

// Synthetic renders frames in-process. It is used by the simulation binary
// and as a stand-in camera for tests.
type Synthetic struct {
	cfg    SyntheticConfig
	pixel  uint16
	target bool
	period time.Duration

	pool   chan *vision.Frame
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	seq  uint64
	last time.Time

	outstanding atomic.Int64
	released    atomic.Uint64
}

// NewSynthetic validates cfg and preallocates the frame buffers.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("synthetic camera: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = 2
	}
	if cfg.Motion == "" {
		cfg.Motion = "static"
	}
	s := &Synthetic{
		cfg:    cfg,
		period: time.Duration(cfg.PeriodMs) * time.Millisecond,
		pool:   make(chan *vision.Frame, cfg.Buffers),
		closed: make(chan struct{}),
	}
	if cfg.TargetColor != "" {
		cr, err := vision.Preset(cfg.TargetColor)
		if err != nil {
			return nil, err
		}
		p, ok := PixelFor(cr)
		if !ok {
			return nil, fmt.Errorf("synthetic camera: no pixel matches %q", cfg.TargetColor)
		}
		s.pixel, s.target = p, true
	}
	for i := 0; i < cfg.Buffers; i++ {
		s.pool <- vision.NewFrame(cfg.Width, cfg.Height)
	}
	return s, nil
}

// Acquire implements Source. It waits for a free buffer and for the frame
// period to elapse.
func (s *Synthetic) Acquire(ctx context.Context) (*vision.Frame, error) {
	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}

	s.mu.Lock()
	wait := time.Duration(0)
	if s.period > 0 && !s.last.IsZero() {
		wait = s.period - time.Since(s.last)
	}
	s.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, ErrClosed
		}
	}

	var f *vision.Frame
	select {
	case f = <-s.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, ErrClosed
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.last = time.Now()
	s.mu.Unlock()

	if s.cfg.MissEvery > 0 && seq%uint64(s.cfg.MissEvery) == 0 {
		s.pool <- f
		return nil, ErrNoFrame
	}
	s.render(f, seq)
	s.outstanding.Add(1)
	return f, nil
}

// Release implements Source.
func (s *Synthetic) Release(f *vision.Frame) {
	if f == nil {
		return
	}
	s.outstanding.Add(-1)
	s.released.Add(1)
	select {
	case s.pool <- f:
	default:
	}
}

// Close unblocks pending Acquire calls.
func (s *Synthetic) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Outstanding is the number of acquired frames not yet released.
func (s *Synthetic) Outstanding() int64 { return s.outstanding.Load() }

// Released counts Release calls.
func (s *Synthetic) Released() uint64 { return s.released.Load() }

func (s *Synthetic) render(f *vision.Frame, seq uint64) {
	f.Fill(0)
	f.Seq = seq
	if !s.target || s.cfg.TargetSize <= 0 {
		return
	}
	w, h := s.cfg.Width, s.cfg.Height
	size := s.cfg.TargetSize
	cx, cy := w/2, h/2
	switch s.cfg.Motion {
	case "sweep":
		// triangle wave across the frame, 4px per frame
		span := max(w-size, 1)
		pos := int(seq*4) % (2 * span)
		if pos > span {
			pos = 2*span - pos
		}
		cx = pos + size/2
	case "approach":
		limit := max(min(w, h)/2, size+1)
		size += int(seq) % (limit - size)
	}
	f.FillRect(cx-size/2, cy-size/2, cx-size/2+size, cy-size/2+size, s.pixel)
}
