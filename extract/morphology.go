package extract

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ElementShape is for shape of a structuring element
type ElementShape uint16

const (
	// ElementRect is a filled rectangle
	ElementRect ElementShape = iota
	// ElementEllipse is an ellipse inscribed into the rectangle
	ElementEllipse
	// ElementCross is a cross through the anchor
	ElementCross
)

// StructuringElement is a binary neighbourhood used by erosion and dilation.
// Offsets are relative to the anchor (the element center).
type StructuringElement struct {
	Width   int
	Height  int
	offsets []Point
}

// NewStructuringElement builds a fresh element of the given shape and size.
// The ellipse rasterisation follows the usual row-span construction so that a
// 7x7 ellipse matches the element commonly used for tail filtering.
func NewStructuringElement(shape ElementShape, width, height int) (*StructuringElement, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidKernel, "structuring element %dx%d", width, height)
	}
	ax, ay := width/2, height/2
	el := &StructuringElement{Width: width, Height: height}
	r, c := height/2, width/2
	invR2 := 0.0
	if r > 0 {
		invR2 = 1.0 / float64(r*r)
	}
	for i := 0; i < height; i++ {
		j1, j2 := 0, 0
		switch {
		case shape == ElementRect || (shape == ElementCross && i == ay):
			j2 = width
		case shape == ElementCross:
			j1, j2 = ax, ax+1
		default:
			dy := i - r
			if dy*dy <= r*r {
				dx := int(math.RoundToEven(float64(c) * math.Sqrt(float64(r*r-dy*dy)*invR2)))
				j1 = maxInt(c-dx, 0)
				j2 = minInt(c+dx+1, width)
			}
		}
		for j := j1; j < j2; j++ {
			el.offsets = append(el.offsets, Point{X: float64(j - ax), Y: float64(i - ay)})
		}
	}
	return el, nil
}

// Size returns number of active cells in the element
func (el *StructuringElement) Size() int {
	return len(el.offsets)
}

// morph applies one min (erode) or max (dilate) pass. Out-of-bounds neighbours are ignored.
func morph(src *mat.Dense, el *StructuringElement, erode bool) *mat.Dense {
	rows, cols := src.Dims()
	dst := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			best := math.Inf(1)
			if !erode {
				best = math.Inf(-1)
			}
			for _, off := range el.offsets {
				rr, cc := r+int(off.Y), c+int(off.X)
				if rr < 0 || cc < 0 || rr >= rows || cc >= cols {
					continue
				}
				v := src.At(rr, cc)
				if erode {
					best = minFloat64(best, v)
				} else {
					best = maxFloat64(best, v)
				}
			}
			if math.IsInf(best, 0) {
				best = src.At(r, c)
			}
			dst.Set(r, c, best)
		}
	}
	return dst
}

// Erode applies grayscale erosion iterations times. Zero iterations return a copy.
func Erode(src *mat.Dense, el *StructuringElement, iterations int) *mat.Dense {
	out := cloneFrame(src)
	if el == nil {
		return out
	}
	for i := 0; i < iterations; i++ {
		out = morph(out, el, true)
	}
	return out
}

// Dilate applies grayscale dilation iterations times. Zero iterations return a copy.
func Dilate(src *mat.Dense, el *StructuringElement, iterations int) *mat.Dense {
	out := cloneFrame(src)
	if el == nil {
		return out
	}
	for i := 0; i < iterations; i++ {
		out = morph(out, el, false)
	}
	return out
}

// Open is erosion followed by dilation, each repeated iterations times
func Open(src *mat.Dense, el *StructuringElement, iterations int) *mat.Dense {
	return Dilate(Erode(src, el, iterations), el, iterations)
}

// morphMask runs a morphological operation on a mask through its 0/1 frame
func morphMask(m *Mask, op func(*mat.Dense) *mat.Dense) *Mask {
	frame := m.ToFrame()
	if frame == nil {
		return m.Clone()
	}
	return MaskFromFrame(op(frame), func(v float64) bool { return v > 0 })
}

// FillHoles sets every background pixel that is not 4-connected to the image border
func FillHoles(m *Mask) *Mask {
	out := m.Clone()
	if m.Rows == 0 || m.Cols == 0 {
		return out
	}
	reached := make([]bool, len(m.Data))
	queue := make([]int, 0, 2*(m.Rows+m.Cols))
	push := func(r, c int) {
		idx := r*m.Cols + c
		if m.Data[idx] || reached[idx] {
			return
		}
		reached[idx] = true
		queue = append(queue, idx)
	}
	for r := 0; r < m.Rows; r++ {
		push(r, 0)
		push(r, m.Cols-1)
	}
	for c := 0; c < m.Cols; c++ {
		push(0, c)
		push(m.Rows-1, c)
	}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		r, c := idx/m.Cols, idx%m.Cols
		if r > 0 {
			push(r-1, c)
		}
		if r < m.Rows-1 {
			push(r+1, c)
		}
		if c > 0 {
			push(r, c-1)
		}
		if c < m.Cols-1 {
			push(r, c+1)
		}
	}
	for i := range out.Data {
		if !reached[i] {
			out.Data[i] = true
		}
	}
	return out
}
