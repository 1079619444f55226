package extract

import (
	"image"
	"math"
)

// Contour is a closed border traced around a region of a binary mask.
// Points are pixel centres (X = column, Y = row) in tracing order.
type Contour struct {
	Points []image.Point
	// Hole is true for borders between a region and a hole inside it
	Hole bool
}

// Area returns the absolute polygon area enclosed by the contour
func (c *Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		p, q := c.Points[i], c.Points[(i+1)%n]
		sum += float64(p.X*q.Y - q.X*p.Y)
	}
	return math.Abs(sum) / 2.0
}

// 8-neighbourhood in counterclockwise order (rows grow downwards): E, NE, N, NW, W, SW, S, SE
var (
	dirRow = [8]int{0, -1, -1, -1, 0, 1, 1, 1}
	dirCol = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
)

func directionTo(fromR, fromC, toR, toC int) int {
	dr, dc := toR-fromR, toC-fromC
	for d := 0; d < 8; d++ {
		if dirRow[d] == dr && dirCol[d] == dc {
			return d
		}
	}
	return 0
}

// FindContours traces every outer and hole border of the mask with topological border
// following. Contours are returned in discovery order (raster order of their starting pixel).
func FindContours(m *Mask) []Contour {
	rows, cols := m.Rows+2, m.Cols+2
	f := make([][]int, rows)
	for i := range f {
		f[i] = make([]int, cols)
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.Data[r*m.Cols+c] {
				f[r+1][c+1] = 1
			}
		}
	}

	contours := make([]Contour, 0)
	nbd := 1
	for i := 1; i < rows-1; i++ {
		for j := 1; j < cols-1; j++ {
			fij := f[i][j]
			outer := fij == 1 && f[i][j-1] == 0
			hole := !outer && fij >= 1 && f[i][j+1] == 0
			if !outer && !hole {
				continue
			}
			nbd++
			i2, j2 := i, j+1
			if outer {
				j2 = j - 1
			}
			points := traceBorder(f, i, j, i2, j2, nbd)
			contours = append(contours, Contour{Points: points, Hole: hole})
		}
	}
	return contours
}

// traceBorder follows one border starting at (i, j) with (i2, j2) as the background neighbour
// the border was entered from, labelling visited pixels with nbd.
func traceBorder(f [][]int, i, j, i2, j2, nbd int) []image.Point {
	// look around clockwise for the first non-zero neighbour
	start := directionTo(i, j, i2, j2)
	i1, j1 := -1, -1
	for k := 0; k < 8; k++ {
		d := (start - k + 8) % 8
		ni, nj := i+dirRow[d], j+dirCol[d]
		if f[ni][nj] != 0 {
			i1, j1 = ni, nj
			break
		}
	}
	if i1 < 0 {
		// isolated pixel
		f[i][j] = -nbd
		return []image.Point{{X: j - 1, Y: i - 1}}
	}

	points := make([]image.Point, 0, 16)
	i2, j2 = i1, j1
	i3, j3 := i, j
	for {
		// counterclockwise from the element after (i2, j2) around (i3, j3)
		from := directionTo(i3, j3, i2, j2)
		eastZero := false
		i4, j4 := i2, j2
		for k := 1; k <= 8; k++ {
			d := (from + k) % 8
			ni, nj := i3+dirRow[d], j3+dirCol[d]
			if f[ni][nj] != 0 {
				i4, j4 = ni, nj
				break
			}
			if d == 0 {
				eastZero = true
			}
		}
		if eastZero {
			f[i3][j3] = -nbd
		} else if f[i3][j3] == 1 {
			f[i3][j3] = nbd
		}
		points = append(points, image.Point{X: j3 - 1, Y: i3 - 1})
		if i4 == i && j4 == j && i3 == i1 && j3 == j1 {
			break
		}
		i2, j2 = i3, j3
		i3, j3 = i4, j4
	}
	return points
}
