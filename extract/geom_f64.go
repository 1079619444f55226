package extract

import (
	"math"
)

// Point is a 2D position in image coordinates: X is the column, Y is the row.
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// MissingPoint returns a point with both coordinates set to NaN
func MissingPoint() Point {
	return Point{X: math.NaN(), Y: math.NaN()}
}

// IsMissing reports whether any coordinate of the point is NaN
func (p Point) IsMissing() bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}

// BBox is an inclusive bounding box in (row, col) coordinates.
type BBox struct {
	MinRow int
	MinCol int
	MaxRow int
	MaxCol int
}

// Valid reports whether the box lies inside a rows x cols frame and is not inverted
func (b BBox) Valid(rows, cols int) bool {
	if b.MinRow > b.MaxRow || b.MinCol > b.MaxCol {
		return false
	}
	return b.MinRow >= 0 && b.MinCol >= 0 && b.MaxRow < rows && b.MaxCol < cols
}

// Height returns number of rows covered by the box
func (b BBox) Height() int {
	return b.MaxRow - b.MinRow + 1
}

// Width returns number of columns covered by the box
func (b BBox) Width() int {
	return b.MaxCol - b.MinCol + 1
}

// Area returns number of pixels covered by the box
func (b BBox) Area() int {
	return b.Height() * b.Width()
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}
