package vision

// Blob accumulates the pixels of one frame that pass a ColorRange.
type Blob struct {
	Count uint32
	SumX  uint64
	SumY  uint64
	MinX  int
	MaxX  int
	MinY  int
	MaxY  int
}

// Empty reports whether no pixel matched.
func (b Blob) Empty() bool { return b.Count == 0 || b.MaxX < 0 }

// Centroid is the integer mean position of the matched pixels.
func (b Blob) Centroid() (int, int) {
	if b.Count == 0 {
		return 0, 0
	}
	return int(b.SumX / uint64(b.Count)), int(b.SumY / uint64(b.Count))
}

// Width is the bounding box width, zero when empty.
func (b Blob) Width() int {
	if b.Empty() {
		return 0
	}
	return b.MaxX - b.MinX + 1
}

// Height is the bounding box height, zero when empty.
func (b Blob) Height() int {
	if b.Empty() {
		return 0
	}
	return b.MaxY - b.MinY + 1
}

// Scan walks every pixel of f and collects the ones inside cr.
func Scan(f *Frame, cr ColorRange) Blob {
	b := Blob{MinX: f.Width, MaxX: -1, MinY: f.Height, MaxY: -1}
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Width : (y+1)*f.Width]
		for x, p := range row {
			if !cr.Contains(FromRGB565(p)) {
				continue
			}
			b.SumX += uint64(x)
			b.SumY += uint64(y)
			b.Count++
			if x < b.MinX {
				b.MinX = x
			}
			if x > b.MaxX {
				b.MaxX = x
			}
			if y < b.MinY {
				b.MinY = y
			}
			if y > b.MaxY {
				b.MaxY = y
			}
		}
	}
	return b
}
