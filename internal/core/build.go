package core

import (
	"fmt"

	"RoverLink/internal/geometry"
	"RoverLink/internal/model"
	"RoverLink/internal/vision"
)

// colorRange resolves a preset name or explicit HSV bounds.
func colorRange(c model.ColorConfig) (vision.ColorRange, error) {
	if c.Preset != "" {
		return vision.Preset(c.Preset)
	}
	return vision.NewColorRange("custom", c.HueMin, c.HueMax, c.SatMin, c.SatMax, c.ValMin, c.ValMax), nil
}

func detectorConfig(d model.DetectorConfig) vision.Config {
	return vision.Config{
		MinArea:         d.MinArea,
		MaxAreaRatio:    d.MaxAreaRatio,
		KnownWidthCM:    d.KnownWidthCM,
		FocalLengthPX:   d.FocalLengthPX,
		VetoThresholdCM: d.VetoThresholdCM,
	}
}

// homography builds the pixel-to-ground map. An explicit matrix wins over
// point correspondences, which win over the scale+center default.
func homography(h *model.HomographyConfig) (*geometry.Matrix, error) {
	if h == nil {
		return nil, nil
	}
	switch {
	case len(h.Matrix) == 9:
		var m geometry.Matrix
		copy(m[:], h.Matrix)
		if _, err := m.Inverse(); err != nil {
			return nil, fmt.Errorf("homography matrix: %w", err)
		}
		return &m, nil
	case len(h.ImagePoints) == 4 && len(h.WorldPoints) == 4:
		var src, dst [4]geometry.Point
		for i := range src {
			src[i] = geometry.Point{X: h.ImagePoints[i][0], Y: h.ImagePoints[i][1]}
			dst[i] = geometry.Point{X: h.WorldPoints[i][0], Y: h.WorldPoints[i][1]}
		}
		m, err := geometry.FromCorrespondences(src, dst)
		if err != nil {
			return nil, fmt.Errorf("homography from points: %w", err)
		}
		return &m, nil
	}
	m := geometry.Default(h.ImageWidth, h.ImageHeight, h.RealWidthCM, h.RealHeightCM)
	return &m, nil
}

func newDetector(c model.ColorConfig, d model.DetectorConfig, h *model.HomographyConfig) (*vision.Detector, error) {
	cr, err := colorRange(c)
	if err != nil {
		return nil, err
	}
	m, err := homography(h)
	if err != nil {
		return nil, err
	}
	return vision.NewDetector(detectorConfig(d), cr, m), nil
}
