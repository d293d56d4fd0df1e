package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrBadFrame is returned for frames whose buffer does not match their size.
var ErrBadFrame = errors.New("vision: malformed frame")

// Frame is a borrowed width x height RGB565 buffer, row-major. The detector
// never keeps a Frame past one call.
type Frame struct {
	Width  int
	Height int
	Pix    []uint16
	Seq    uint64
}

// NewFrame allocates a black frame.
func NewFrame(w, h int) *Frame {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Frame{Width: w, Height: h, Pix: make([]uint16, w*h)}
}

// Validate checks the buffer length against the dimensions.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrBadFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrBadFrame, f.Width, f.Height)
	}
	if len(f.Pix) < f.Width*f.Height {
		return fmt.Errorf("%w: expected %d pixels, got %d", ErrBadFrame, f.Width*f.Height, len(f.Pix))
	}
	return nil
}

// Area is the pixel count of the frame.
func (f *Frame) Area() int { return f.Width * f.Height }

// Set writes one pixel; out-of-bounds writes are ignored.
func (f *Frame) Set(x, y int, p uint16) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	f.Pix[y*f.Width+x] = p
}

// FillRect paints the half-open rectangle [x0,x1) x [y0,y1), clipped to the frame.
func (f *Frame) FillRect(x0, y0, x1, y1 int, p uint16) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, f.Width), min(y1, f.Height)
	for y := y0; y < y1; y++ {
		row := f.Pix[y*f.Width : (y+1)*f.Width]
		for x := x0; x < x1; x++ {
			row[x] = p
		}
	}
}

// Fill paints every pixel.
func (f *Frame) Fill(p uint16) {
	for i := range f.Pix {
		f.Pix[i] = p
	}
}

// ToImage expands the frame to 8-bit RGBA for encoding.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := ExpandRGB565(f.Pix[y*f.Width+x])
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
		}
	}
	return img
}
