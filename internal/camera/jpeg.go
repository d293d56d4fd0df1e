package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"RoverLink/internal/vision"
)

// ErrTooLarge is returned when a frame does not fit the payload limit even at
// the lowest allowed quality.
var ErrTooLarge = errors.New("camera: encoded frame too large")

// EncodeJPEG compresses f at quality (1-100).
func EncodeJPEG(f *vision.Frame, quality int) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWithin encodes f starting at quality start and lowers the quality by
// step until the result is at most limit bytes. It gives up below floor.
func EncodeWithin(f *vision.Frame, limit, start, floor, step int) ([]byte, int, error) {
	if step <= 0 {
		step = 1
	}
	var size int
	for q := start; q >= floor; q -= step {
		data, err := EncodeJPEG(f, q)
		if err != nil {
			return nil, 0, err
		}
		if len(data) <= limit {
			return data, q, nil
		}
		size = len(data)
	}
	return nil, 0, fmt.Errorf("%w: %d bytes at quality %d, limit %d", ErrTooLarge, size, floor, limit)
}
