// Package camera is the frame acquisition boundary. A Source hands out
// borrowed frames; every frame returned by Acquire must be given back with
// Release exactly once.
package camera

import (
	"context"
	"errors"
	"fmt"

	"RoverLink/internal/model"
	"RoverLink/internal/vision"
)

var (
	// ErrNoFrame means no frame was available this cycle. It is transient.
	ErrNoFrame = errors.New("camera: no frame")
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("camera: closed")
)

// Source produces RGB565 frames.
type Source interface {
	// Acquire blocks until a frame is ready, ctx is done or the source fails.
	Acquire(ctx context.Context) (*vision.Frame, error)
	// Release returns a frame obtained from Acquire.
	Release(f *vision.Frame)
	Close() error
}

// New builds the source selected by cfg. Kind "none" yields a nil Source.
func New(cfg model.CameraConfig, periodMs int) (Source, error) {
	switch cfg.Kind {
	case "none":
		return nil, nil
	case "", "synthetic":
		s, err := NewSynthetic(SyntheticConfig{
			Width:       cfg.Width,
			Height:      cfg.Height,
			TargetColor: cfg.TargetColor,
			TargetSize:  cfg.TargetSize,
			Motion:      cfg.Motion,
			PeriodMs:    periodMs,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown camera kind %q", cfg.Kind)
	}
}

// PixelFor picks the RGB565 value inside cr with the highest saturation and
// value, for painting synthetic targets.
func PixelFor(cr vision.ColorRange) (uint16, bool) {
	var (
		best  uint16
		score = -1
	)
	for p := 0; p <= 0xFFFF; p++ {
		c := vision.FromRGB565(uint16(p))
		if !cr.Contains(c) {
			continue
		}
		if s := int(c.S) + int(c.V); s > score {
			best, score = uint16(p), s
		}
	}
	return best, score >= 0
}
