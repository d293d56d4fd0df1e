package vision

import (
	"fmt"
	"sort"
)

// ColorRange bounds a target color in HSV space. Wrap is set when HueMin >
// HueMax, in which case the hue band crosses 255 -> 0 (red).
type ColorRange struct {
	Name   string
	HueMin uint8
	HueMax uint8
	SatMin uint8
	SatMax uint8
	ValMin uint8
	ValMax uint8
	Wrap   bool
}

// NewColorRange builds a range and derives the wrap flag.
func NewColorRange(name string, hMin, hMax, sMin, sMax, vMin, vMax uint8) ColorRange {
	return ColorRange{
		Name:   name,
		HueMin: hMin,
		HueMax: hMax,
		SatMin: sMin,
		SatMax: sMax,
		ValMin: vMin,
		ValMax: vMax,
		Wrap:   hMin > hMax,
	}
}

// Contains reports whether c falls inside the range. Saturation and value
// reject first.
func (cr ColorRange) Contains(c HSV) bool {
	if c.S < cr.SatMin || c.S > cr.SatMax {
		return false
	}
	if c.V < cr.ValMin || c.V > cr.ValMax {
		return false
	}
	if !cr.Wrap {
		return c.H >= cr.HueMin && c.H <= cr.HueMax
	}
	return c.H >= cr.HueMin || c.H <= cr.HueMax
}

var presets = map[string]ColorRange{
	"red":            NewColorRange("red", 0, 20, 100, 255, 100, 255),
	"red_wrap":       NewColorRange("red_wrap", 235, 15, 100, 255, 100, 255),
	"green":          NewColorRange("green", 60, 100, 80, 255, 80, 255),
	"blue":           NewColorRange("blue", 140, 180, 80, 255, 80, 255),
	"yellow":         NewColorRange("yellow", 35, 55, 100, 255, 100, 255),
	"obstacle_green": NewColorRange("obstacle_green", 40, 80, 50, 255, 50, 255),
	"target_orange":  NewColorRange("target_orange", 10, 30, 60, 255, 80, 255),
}

// Preset looks up a named color range.
func Preset(name string) (ColorRange, error) {
	cr, ok := presets[name]
	if !ok {
		return ColorRange{}, fmt.Errorf("unknown color preset %q", name)
	}
	return cr, nil
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
