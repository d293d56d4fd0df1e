package vision

import (
	"sync/atomic"
	"time"

	"RoverLink/internal/geometry"
)

// SentinelDistance is reported when no valid object width is available.
const SentinelDistance = 999.9

// Config holds the detector tuning constants.
type Config struct {
	MinArea         uint32
	MaxAreaRatio    float64
	KnownWidthCM    float64
	FocalLengthPX   float64
	VetoThresholdCM float64
}

// DefaultConfig returns the rover's calibrated constants.
func DefaultConfig() Config {
	return Config{
		MinArea:         200,
		MaxAreaRatio:    0.5,
		KnownWidthCM:    10.0,
		FocalLengthPX:   400.0,
		VetoThresholdCM: 25.0,
	}
}

// Result is produced fresh for every frame.
type Result struct {
	Detected   bool
	CentroidX  int
	CentroidY  int
	PixelCount uint32
	DistanceCM float64
	World      geometry.Point
	// WorldValid is false when no homography was given or its projective
	// scale was degenerate at the centroid.
	WorldValid bool
	BBoxWidth  int
	BBoxHeight int
	Seq        uint64
}

// EstimateDistance applies the pinhole model to an observed pixel width.
func (c Config) EstimateDistance(widthPX int) float64 {
	if widthPX <= 0 {
		return SentinelDistance
	}
	return c.KnownWidthCM * c.FocalLengthPX / float64(widthPX)
}

// accepts applies the area band [MinArea, area*MaxAreaRatio).
func (c Config) accepts(count uint32, area int) bool {
	maxAllowed := int(float64(area) * c.MaxAreaRatio)
	return count >= c.MinArea && int64(count) < int64(maxAllowed)
}

// Detect runs one full-frame pass. h may be nil. An invalid frame yields an
// undetected result, never a panic.
func Detect(f *Frame, cr ColorRange, h *geometry.Matrix, cfg Config) Result {
	res := Result{DistanceCM: SentinelDistance}
	if f == nil {
		return res
	}
	res.Seq = f.Seq
	if f.Validate() != nil {
		return res
	}

	blob := Scan(f, cr)
	res.PixelCount = blob.Count
	if blob.Empty() || !cfg.accepts(blob.Count, f.Area()) {
		return res
	}

	res.Detected = true
	res.CentroidX, res.CentroidY = blob.Centroid()
	res.BBoxWidth = blob.Width()
	res.BBoxHeight = blob.Height()
	res.DistanceCM = cfg.EstimateDistance(res.BBoxWidth)
	if h != nil {
		res.World, res.WorldValid = h.Transform(float64(res.CentroidX), float64(res.CentroidY))
	}
	return res
}

// Stats is a snapshot of detector counters.
type Stats struct {
	Frames         uint64
	Detections     uint64
	AvgProcessTime time.Duration
}

// Detector binds a color range, an optional homography and constants, and
// keeps running counters. Detect is called from one goroutine; Stats may be
// read from any.
type Detector struct {
	cfg   Config
	color ColorRange
	h     *geometry.Matrix

	frames     atomic.Uint64
	detections atomic.Uint64
	busyNanos  atomic.Int64
}

// NewDetector builds a Detector. h may be nil.
func NewDetector(cfg Config, cr ColorRange, h *geometry.Matrix) *Detector {
	return &Detector{cfg: cfg, color: cr, h: h}
}

// Config returns the detector constants.
func (d *Detector) Config() Config { return d.cfg }

// Color returns the target color range.
func (d *Detector) Color() ColorRange { return d.color }

// Detect processes one frame and updates the counters.
func (d *Detector) Detect(f *Frame) Result {
	start := time.Now()
	res := Detect(f, d.color, d.h, d.cfg)
	d.busyNanos.Add(int64(time.Since(start)))
	d.frames.Add(1)
	if res.Detected {
		d.detections.Add(1)
	}
	return res
}

// Veto evaluates res against the configured threshold.
func (d *Detector) Veto(res Result) VetoState {
	return Evaluate(res, d.cfg.VetoThresholdCM)
}

// Stats returns the counters collected so far.
func (d *Detector) Stats() Stats {
	frames := d.frames.Load()
	s := Stats{Frames: frames, Detections: d.detections.Load()}
	if frames > 0 {
		s.AvgProcessTime = time.Duration(d.busyNanos.Load() / int64(frames))
	}
	return s
}
