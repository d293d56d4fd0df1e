package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverLink/internal/geometry"
)

const pureGreen = 0x07E0

func TestValueIsMaxChannelForAllPixels(t *testing.T) {
	for p := 0; p <= 0xFFFF; p++ {
		r, g, b := ExpandRGB565(uint16(p))
		c := FromRGB565(uint16(p))
		if c.V != max(r, g, b) {
			t.Fatalf("pixel %#04x: value %d, want %d", p, c.V, max(r, g, b))
		}
		if r == g && g == b && (c.H != 0 || c.S != 0) {
			t.Fatalf("gray pixel %#04x: got h=%d s=%d", p, c.H, c.S)
		}
	}
}

func TestGrayTriplesHaveNoHueOrSaturation(t *testing.T) {
	for v := 0; v <= 255; v++ {
		c := FromRGB(uint8(v), uint8(v), uint8(v))
		assert.Equal(t, HSV{H: 0, S: 0, V: uint8(v)}, c)
	}
}

func TestPrimaryHues(t *testing.T) {
	red := FromRGB(255, 0, 0)
	assert.Equal(t, uint8(0), red.H)
	assert.Equal(t, uint8(255), red.S)

	assert.Equal(t, uint8(85), FromRGB(0, 255, 0).H)
	assert.Equal(t, uint8(171), FromRGB(0, 0, 255).H)

	// R-max with b > g lands just below the wrap point.
	magentaish := FromRGB(255, 0, 128)
	assert.Greater(t, magentaish.H, uint8(200))
}

func TestPackExpandRoundTrip(t *testing.T) {
	for p := 0; p <= 0xFFFF; p += 7 {
		r, g, b := ExpandRGB565(uint16(p))
		require.Equal(t, uint16(p), PackRGB565(r, g, b))
	}
}

func TestRangeMembershipHonoursHueBounds(t *testing.T) {
	plain := NewColorRange("plain", 60, 100, 0, 255, 0, 255)
	wrap := NewColorRange("wrap", 230, 20, 0, 255, 0, 255)
	require.False(t, plain.Wrap)
	require.True(t, wrap.Wrap)

	for p := 0; p <= 0xFFFF; p++ {
		c := FromRGB565(uint16(p))
		if plain.Contains(c) && (c.H < 60 || c.H > 100) {
			t.Fatalf("plain range accepted hue %d", c.H)
		}
		if wrap.Contains(c) && !(c.H <= 20 || c.H >= 230) {
			t.Fatalf("wrap range accepted hue %d", c.H)
		}
	}
}

func TestRangeRejectsOnSaturationAndValue(t *testing.T) {
	cr := NewColorRange("g", 60, 100, 80, 255, 80, 255)
	assert.True(t, cr.Contains(HSV{H: 85, S: 200, V: 200}))
	assert.False(t, cr.Contains(HSV{H: 85, S: 10, V: 200}))
	assert.False(t, cr.Contains(HSV{H: 85, S: 200, V: 10}))
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cr, err := Preset(name)
		require.NoError(t, err)
		assert.Equal(t, name, cr.Name)
	}
	_, err := Preset("ultraviolet")
	assert.Error(t, err)
}

func green(t *testing.T) ColorRange {
	t.Helper()
	cr, err := Preset("green")
	require.NoError(t, err)
	return cr
}

func TestDetectBlackFrame(t *testing.T) {
	res := Detect(NewFrame(320, 240), green(t), nil, DefaultConfig())
	assert.False(t, res.Detected)
	assert.InDelta(t, 999.9, res.DistanceCM, 1e-9)
}

func TestDetectMinimumAreaBoundary(t *testing.T) {
	cfg := DefaultConfig()

	f := NewFrame(320, 240)
	f.FillRect(100, 100, 120, 110, pureGreen) // 20x10 = 200
	res := Detect(f, green(t), nil, cfg)
	require.True(t, res.Detected)
	assert.Equal(t, uint32(200), res.PixelCount)
	assert.Equal(t, 20, res.BBoxWidth)
	assert.Equal(t, 109, res.CentroidX)
	assert.Equal(t, 104, res.CentroidY)
	assert.InDelta(t, 200.0, res.DistanceCM, 1e-9)

	f.Set(119, 109, 0)
	res = Detect(f, green(t), nil, cfg)
	assert.False(t, res.Detected)
	assert.Equal(t, uint32(199), res.PixelCount)
	assert.InDelta(t, SentinelDistance, res.DistanceCM, 1e-9)
}

func TestDetectRejectsNearFullFrame(t *testing.T) {
	f := NewFrame(320, 240)
	f.Fill(pureGreen)
	res := Detect(f, green(t), nil, DefaultConfig())
	assert.False(t, res.Detected)
	assert.Equal(t, uint32(320*240), res.PixelCount)
}

func TestDetectMaxAreaIsExclusive(t *testing.T) {
	cfg := DefaultConfig()
	f := NewFrame(40, 20) // area 800, limit 400
	f.FillRect(0, 0, 20, 20, pureGreen)
	assert.False(t, Detect(f, green(t), nil, cfg).Detected)

	f.Set(19, 19, 0)
	assert.True(t, Detect(f, green(t), nil, cfg).Detected)
}

func TestDetectInvalidFrame(t *testing.T) {
	res := Detect(&Frame{Width: 10, Height: 10, Pix: make([]uint16, 5)}, green(t), nil, DefaultConfig())
	assert.False(t, res.Detected)
	res = Detect(nil, green(t), nil, DefaultConfig())
	assert.False(t, res.Detected)
}

func TestDetectAppliesHomography(t *testing.T) {
	h := geometry.Default(320, 240, 100, 80)
	f := NewFrame(320, 240)
	f.FillRect(150, 110, 170, 130, pureGreen)

	res := Detect(f, green(t), &h, DefaultConfig())
	require.True(t, res.Detected)
	require.True(t, res.WorldValid)
	want, _ := h.Transform(float64(res.CentroidX), float64(res.CentroidY))
	assert.InDelta(t, want.X, res.World.X, 1e-9)
	assert.InDelta(t, want.Y, res.World.Y, 1e-9)

	bad := geometry.Matrix{1, 0, 0, 0, 1, 0, 0, 0, 0}
	res = Detect(f, green(t), &bad, DefaultConfig())
	assert.True(t, res.Detected)
	assert.False(t, res.WorldValid)
	assert.Equal(t, geometry.Point{}, res.World)
}

func TestEstimateDistance(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 100.0, cfg.EstimateDistance(40), 1e-9)
	assert.InDelta(t, SentinelDistance, cfg.EstimateDistance(0), 1e-9)
	assert.InDelta(t, SentinelDistance, cfg.EstimateDistance(-3), 1e-9)
}

func TestVetoIsStrictlyBelowThreshold(t *testing.T) {
	at := Result{Detected: true, DistanceCM: 25.0}
	assert.False(t, Evaluate(at, 25.0).Active)

	below := Result{Detected: true, DistanceCM: 24.99}
	assert.True(t, Evaluate(below, 25.0).Active)

	missed := Result{Detected: false, DistanceCM: 10}
	assert.False(t, Evaluate(missed, 25.0).Active)
}

func TestDetectorCountsFrames(t *testing.T) {
	d := NewDetector(DefaultConfig(), green(t), nil)
	f := NewFrame(320, 240)
	d.Detect(f)
	f.FillRect(0, 0, 500, 1, 0) // clipped, no-op
	f.FillRect(10, 10, 60, 60, pureGreen)
	res := d.Detect(f)
	require.True(t, res.Detected)
	assert.InDelta(t, 80.0, res.DistanceCM, 1e-9)
	assert.False(t, d.Veto(res).Active)

	s := d.Stats()
	assert.Equal(t, uint64(2), s.Frames)
	assert.Equal(t, uint64(1), s.Detections)
}

func TestAngleDeg(t *testing.T) {
	assert.InDelta(t, 0.0, AngleDeg(160, 320, 60), 1e-9)
	assert.InDelta(t, 30.0, AngleDeg(320, 320, 60), 1e-9)
	assert.InDelta(t, -30.0, AngleDeg(0, 320, 60), 1e-9)
	assert.InDelta(t, 0.0, AngleDeg(5, 0, 60), 1e-9)
}

func TestToImage(t *testing.T) {
	f := NewFrame(2, 1)
	f.Set(1, 0, pureGreen)
	img := f.ToImage()
	assert.Equal(t, uint8(252), img.RGBAAt(1, 0).G)
	assert.Equal(t, uint8(0), img.RGBAAt(0, 0).G)
}
