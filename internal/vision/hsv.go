// Package vision implements the color-based object detector: RGB565 to HSV
// conversion, range segmentation, the full-frame scan, pinhole distance
// estimation and the local safety veto.
package vision

// HSV is an 8-bit hue/saturation/value triple. Hue spans 0..255 for the full
// circle, so one 60 degree sector is roughly 43 steps.
type HSV struct {
	H uint8
	S uint8
	V uint8
}

// hueSector is 255/6 rounded, the width of one 60 degree hue sector.
const hueSector = 43

// ExpandRGB565 unpacks a 5/6/5 pixel into 8-bit planes. The low bits of each
// plane are zero.
func ExpandRGB565(p uint16) (r, g, b uint8) {
	r = uint8((p & 0xF800) >> 8)
	g = uint8((p & 0x07E0) >> 3)
	b = uint8((p & 0x001F) << 3)
	return r, g, b
}

// PackRGB565 is the inverse of ExpandRGB565 for the retained bits.
func PackRGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// FromRGB565 converts one packed pixel.
func FromRGB565(p uint16) HSV {
	r, g, b := ExpandRGB565(p)
	return FromRGB(r, g, b)
}

// FromRGB converts an 8-bit triple with integer arithmetic only. A gray pixel
// (max == min) has hue 0 and saturation 0.
func FromRGB(r8, g8, b8 uint8) HSV {
	r, g, b := int(r8), int(g8), int(b8)
	hi := max(r, g, b)
	lo := min(r, g, b)
	delta := hi - lo

	out := HSV{V: uint8(hi)}
	if delta == 0 {
		return out
	}

	// (delta<<8)/max reaches 256 when min is 0.
	s := (delta << 8) / hi
	if s > 255 {
		s = 255
	}
	out.S = uint8(s)

	var h int
	switch hi {
	case r:
		h = hueSector * (g - b) / delta
		if g < b {
			h += 255
		}
	case g:
		h = 85 + hueSector*(b-r)/delta
	default:
		h = 171 + hueSector*(r-g)/delta
	}
	out.H = uint8(h)
	return out
}
