package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverLink/internal/model"
	"RoverLink/internal/vision"
)

func TestPixelForPresets(t *testing.T) {
	for _, name := range vision.PresetNames() {
		cr, err := vision.Preset(name)
		require.NoError(t, err)
		p, ok := PixelFor(cr)
		require.True(t, ok, name)
		assert.True(t, cr.Contains(vision.FromRGB565(p)), name)
	}
}

func TestSyntheticTargetIsDetected(t *testing.T) {
	cam, err := NewSynthetic(SyntheticConfig{Width: 320, Height: 240, TargetColor: "green", TargetSize: 40})
	require.NoError(t, err)
	defer cam.Close()

	f, err := cam.Acquire(context.Background())
	require.NoError(t, err)
	cr, _ := vision.Preset("green")
	res := vision.Detect(f, cr, nil, vision.DefaultConfig())
	cam.Release(f)

	require.True(t, res.Detected)
	assert.Equal(t, uint32(1600), res.PixelCount)
	assert.InDelta(t, 100.0, res.DistanceCM, 1e-9)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Zero(t, cam.Outstanding())
}

func TestSyntheticMotion(t *testing.T) {
	for _, motion := range []string{"sweep", "approach"} {
		cam, err := NewSynthetic(SyntheticConfig{Width: 160, Height: 120, TargetColor: "red", TargetSize: 20, Motion: motion})
		require.NoError(t, err)
		cr, _ := vision.Preset("red")

		var first, later vision.Result
		for i := 0; i < 5; i++ {
			f, err := cam.Acquire(context.Background())
			require.NoError(t, err)
			res := vision.Detect(f, cr, nil, vision.DefaultConfig())
			if i == 0 {
				first = res
			}
			later = res
			cam.Release(f)
		}
		require.True(t, first.Detected, motion)
		if motion == "sweep" {
			assert.NotEqual(t, first.CentroidX, later.CentroidX)
		} else {
			assert.Greater(t, later.PixelCount, first.PixelCount)
		}
	}
}

func TestSyntheticMissAndBlocking(t *testing.T) {
	cam, err := NewSynthetic(SyntheticConfig{Width: 8, Height: 8, MissEvery: 2, Buffers: 1})
	require.NoError(t, err)

	f, err := cam.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cam.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "single buffer still borrowed")

	cam.Release(f)
	_, err = cam.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Zero(t, cam.Outstanding())

	require.NoError(t, cam.Close())
	_, err = cam.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSyntheticPeriod(t *testing.T) {
	cam, err := NewSynthetic(SyntheticConfig{Width: 4, Height: 4, PeriodMs: 30})
	require.NoError(t, err)
	start := time.Now()
	for i := 0; i < 3; i++ {
		f, err := cam.Acquire(context.Background())
		require.NoError(t, err)
		cam.Release(f)
	}
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestNewFromConfig(t *testing.T) {
	src, err := New(model.CameraConfig{Kind: "none"}, 0)
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = New(model.CameraConfig{Kind: "synthetic", Width: 32, Height: 24}, 10)
	require.NoError(t, err)
	assert.NotNil(t, src)

	_, err = New(model.CameraConfig{Kind: "synthetic"}, 10)
	assert.Error(t, err)
	_, err = New(model.CameraConfig{Kind: "usb"}, 10)
	assert.Error(t, err)
}

func TestEncodeWithin(t *testing.T) {
	f := vision.NewFrame(64, 48)
	for i := range f.Pix {
		f.Pix[i] = uint16(i * 2654435761) // noise compresses poorly
	}

	data, q, err := EncodeWithin(f, 1<<20, 60, 30, 10)
	require.NoError(t, err)
	assert.Equal(t, 60, q)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	hi, err := EncodeJPEG(f, 60)
	require.NoError(t, err)
	lo, err := EncodeJPEG(f, 30)
	require.NoError(t, err)
	require.Less(t, len(lo), len(hi))

	data, q, err = EncodeWithin(f, len(hi)-1, 60, 30, 10)
	require.NoError(t, err)
	assert.Less(t, q, 60)
	assert.LessOrEqual(t, len(data), len(hi)-1)

	_, _, err = EncodeWithin(f, 10, 60, 30, 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = EncodeJPEG(&vision.Frame{Width: 2, Height: 2}, 50)
	assert.ErrorIs(t, err, vision.ErrBadFrame)
}
