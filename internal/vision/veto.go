package vision

import "math"

// VetoState is the local safety signal: forward motion is blocked while
// Active is true.
type VetoState struct {
	Active     bool
	DistanceCM float64
}

// Evaluate derives the veto from one detection. A detection exactly at the
// threshold does not veto.
func Evaluate(res Result, thresholdCM float64) VetoState {
	return VetoState{
		Active:     res.Detected && res.DistanceCM < thresholdCM,
		DistanceCM: res.DistanceCM,
	}
}

// AngleDeg converts a horizontal centroid into a bearing relative to the
// optical axis. Positive is to the right of center.
func AngleDeg(centroidX, width int, hfovDeg float64) float64 {
	if width <= 0 {
		return 0
	}
	half := float64(width) / 2
	a := (float64(centroidX) - half) / half * (hfovDeg / 2)
	if math.IsNaN(a) {
		return 0
	}
	return a
}
