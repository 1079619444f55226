package extract

import (
	"math"
)

// Moments are raw and central image moments of a shape up to second order
type Moments struct {
	M00  float64
	M10  float64
	M01  float64
	M20  float64
	M11  float64
	M02  float64
	Mu20 float64
	Mu11 float64
	Mu02 float64
}

// ContourMoments computes moments of the polygon enclosed by the contour using Green's theorem.
// Moments are sign-normalised so M00 is the non-negative enclosed area.
func ContourMoments(c *Contour) Moments {
	var m Moments
	n := len(c.Points)
	if n < 3 {
		return m
	}
	var a00, a10, a01, a20, a11, a02 float64
	for i := 0; i < n; i++ {
		p, q := c.Points[i], c.Points[(i+1)%n]
		xi, yi := float64(p.X), float64(p.Y)
		xj, yj := float64(q.X), float64(q.Y)
		cross := xi*yj - xj*yi
		a00 += cross
		a10 += cross * (xi + xj)
		a01 += cross * (yi + yj)
		a20 += cross * (xi*xi + xi*xj + xj*xj)
		a02 += cross * (yi*yi + yi*yj + yj*yj)
		a11 += cross * (xi*yj + 2*xi*yi + 2*xj*yj + xj*yi)
	}
	m.M00 = a00 / 2
	m.M10 = a10 / 6
	m.M01 = a01 / 6
	m.M20 = a20 / 12
	m.M02 = a02 / 12
	m.M11 = a11 / 24
	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
		m.M20, m.M02, m.M11 = -m.M20, -m.M02, -m.M11
	}
	if m.M00 != 0 {
		cx, cy := m.M10/m.M00, m.M01/m.M00
		m.Mu20 = m.M20 - m.M10*cx
		m.Mu02 = m.M02 - m.M01*cy
		m.Mu11 = m.M11 - m.M10*cy
	}
	return m
}

// Features are moment-derived shape features of one identity in one frame.
// Valid is false when the features are missing.
type Features struct {
	Valid       bool
	Centroid    Point
	Orientation float64
	// AxisLength holds (major, minor) ellipse axis lengths
	AxisLength [2]float64
}

// MissingFeatures returns features explicitly marked as missing
func MissingFeatures() Features {
	return Features{
		Valid:       false,
		Centroid:    MissingPoint(),
		Orientation: math.NaN(),
		AxisLength:  [2]float64{math.NaN(), math.NaN()},
	}
}

// MomentFeatures derives centroid, orientation and ellipse axis lengths from moments.
// Zero area gives missing features.
func MomentFeatures(m Moments) Features {
	if m.M00 == 0 {
		return MissingFeatures()
	}
	num := 2 * m.Mu11
	den := m.Mu20 - m.Mu02
	common := math.Sqrt(4*m.Mu11*m.Mu11 + den*den)
	major := (m.Mu20 + m.Mu02 + common) / m.M00
	minor := (m.Mu20 + m.Mu02 - common) / m.M00
	return Features{
		Valid:       true,
		Centroid:    Point{X: m.M10 / m.M00, Y: m.M01 / m.M00},
		Orientation: -0.5 * math.Atan2(num, den),
		AxisLength: [2]float64{
			2 * math.Sqrt2 * math.Sqrt(maxFloat64(major, 0)),
			2 * math.Sqrt2 * math.Sqrt(maxFloat64(minor, 0)),
		},
	}
}
