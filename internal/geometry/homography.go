// Package geometry maps image-plane pixel coordinates to ground-plane world
// coordinates with a 3x3 projective transform.
package geometry

import (
	"errors"
	"math"
)

// degenerateW is the smallest |w| accepted when normalising a projected point.
const degenerateW = 1e-6

// ErrSingular is returned when a matrix or a correspondence set cannot be inverted.
var ErrSingular = errors.New("geometry: singular system")

// Point is a 2D coordinate, pixels or centimetres depending on the side of the map.
type Point struct {
	X float64
	Y float64
}

// Matrix is a row-major 3x3 homography.
type Matrix [9]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Default returns the scale+center map for an image of imgW x imgH pixels
// looking at a realW x realH cm ground rectangle. The image center maps to
// the world origin.
func Default(imgW, imgH int, realW, realH float64) Matrix {
	if imgW <= 0 || imgH <= 0 {
		return Identity()
	}
	sx := realW / float64(imgW)
	sy := realH / float64(imgH)
	return Matrix{
		sx, 0, -realW / 2,
		0, sy, -realH / 2,
		0, 0, 1,
	}
}

// Transform applies m to the pixel (u, v). ok is false when the projective
// scale is degenerate, in which case (0, 0) is returned.
func (m Matrix) Transform(u, v float64) (p Point, ok bool) {
	x := m[0]*u + m[1]*v + m[2]
	y := m[3]*u + m[4]*v + m[5]
	w := m[6]*u + m[7]*v + m[8]
	if math.Abs(w) < degenerateW || math.IsNaN(w) {
		return Point{}, false
	}
	p = Point{X: x / w, Y: y / w}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return Point{}, false
	}
	return p, true
}

// Inverse returns the world-to-pixel map.
func (m Matrix) Inverse() (Matrix, error) {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[3], m[4], m[5]
	g, h, i := m[6], m[7], m[8]

	co00 := e*i - f*h
	co01 := -(d*i - f*g)
	co02 := d*h - e*g
	det := a*co00 + b*co01 + c*co02
	if math.Abs(det) < 1e-12 {
		return Matrix{}, ErrSingular
	}
	inv := Matrix{
		co00, -(b*i - c*h), b*f - c*e,
		co01, a*i - c*g, -(a*f - c*d),
		co02, -(a*h - b*g), a*e - b*d,
	}
	for k := range inv {
		inv[k] /= det
	}
	return inv, nil
}

// FromCorrespondences solves for the homography taking each src[i] to dst[i]
// with h33 fixed to 1. Collinear or repeated points return ErrSingular.
func FromCorrespondences(src, dst [4]Point) (Matrix, error) {
	// A·h = b, 8 equations in h11..h32.
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		u, v := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		a[2*i] = [9]float64{u, v, 1, 0, 0, 0, -u * x, -v * x, x}
		a[2*i+1] = [9]float64{0, 0, 0, u, v, 1, -u * y, -v * y, y}
	}

	for col := 0; col < 8; col++ {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-10 {
			return Matrix{}, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			factor := a[r][col] / a[col][col]
			for k := col; k < 9; k++ {
				a[r][k] -= factor * a[col][k]
			}
		}
	}

	var m Matrix
	for k := 0; k < 8; k++ {
		m[k] = a[k][8] / a[k][k]
	}
	m[8] = 1
	return m, nil
}
