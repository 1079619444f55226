package extract

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NewFrame allocates a zero-filled rows x cols depth frame.
// Returns nil for empty dimensions since gonum does not allow zero-sized matrices.
func NewFrame(rows, cols int) *mat.Dense {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	return mat.NewDense(rows, cols, nil)
}

// cloneFrame returns a deep copy of the frame
func cloneFrame(frame *mat.Dense) *mat.Dense {
	if frame == nil {
		return nil
	}
	return mat.DenseCopyOf(frame)
}

// checkSameDims verifies every frame in the batch matches the first one
func checkSameDims(frames []*mat.Dense) (int, int, error) {
	if len(frames) == 0 {
		return 0, 0, ErrNoFrames
	}
	if frames[0] == nil {
		return 0, 0, errors.Wrap(ErrDimensionMismatch, "nil frame at index 0")
	}
	rows, cols := frames[0].Dims()
	for i, f := range frames {
		if f == nil {
			return 0, 0, errors.Wrapf(ErrDimensionMismatch, "nil frame at index %d", i)
		}
		r, c := f.Dims()
		if r != rows || c != cols {
			return 0, 0, errors.Wrapf(ErrDimensionMismatch, "frame %d is %dx%d, expected %dx%d", i, r, c, rows, cols)
		}
	}
	return rows, cols, nil
}

// Mask is a dense row-major boolean image.
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

// NewMask allocates an all-false mask
func NewMask(rows, cols int) *Mask {
	if rows < 0 || cols < 0 {
		rows, cols = 0, 0
	}
	return &Mask{
		Rows: rows,
		Cols: cols,
		Data: make([]bool, rows*cols),
	}
}

// MaskFromFrame marks every pixel whose value satisfies keep
func MaskFromFrame(frame *mat.Dense, keep func(v float64) bool) *Mask {
	if frame == nil {
		return NewMask(0, 0)
	}
	rows, cols := frame.Dims()
	m := NewMask(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Data[r*cols+c] = keep(frame.At(r, c))
		}
	}
	return m
}

// At returns mask value; out-of-bounds reads are false
func (m *Mask) At(r, c int) bool {
	if r < 0 || c < 0 || r >= m.Rows || c >= m.Cols {
		return false
	}
	return m.Data[r*m.Cols+c]
}

// Set sets mask value
func (m *Mask) Set(r, c int, v bool) {
	m.Data[r*m.Cols+c] = v
}

// Count returns the number of true pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask
func (m *Mask) Clone() *Mask {
	out := &Mask{Rows: m.Rows, Cols: m.Cols, Data: make([]bool, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// And returns the pixel-wise intersection of two masks of equal dims
func (m *Mask) And(other *Mask) (*Mask, error) {
	if other.Rows != m.Rows || other.Cols != m.Cols {
		return nil, errors.Wrapf(ErrDimensionMismatch, "mask %dx%d vs %dx%d", m.Rows, m.Cols, other.Rows, other.Cols)
	}
	out := NewMask(m.Rows, m.Cols)
	for i := range m.Data {
		out.Data[i] = m.Data[i] && other.Data[i]
	}
	return out, nil
}

// Overlap counts pixels set in both masks. Mismatched dims overlap nowhere.
func (m *Mask) Overlap(other *Mask) int {
	if other == nil || other.Rows != m.Rows || other.Cols != m.Cols {
		return 0
	}
	n := 0
	for i := range m.Data {
		if m.Data[i] && other.Data[i] {
			n++
		}
	}
	return n
}

// ToFrame converts the mask to a 0/1 valued frame
func (m *Mask) ToFrame() *mat.Dense {
	frame := NewFrame(m.Rows, m.Cols)
	if frame == nil {
		return nil
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.Data[r*m.Cols+c] {
				frame.Set(r, c, 1)
			}
		}
	}
	return frame
}

// BBoxOf returns the tight bounding box of the true pixels. The flag is false for an empty mask.
func BBoxOf(m *Mask) (BBox, bool) {
	box := BBox{MinRow: m.Rows, MinCol: m.Cols, MaxRow: -1, MaxCol: -1}
	found := false
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if !m.Data[r*m.Cols+c] {
				continue
			}
			found = true
			box.MinRow = minInt(box.MinRow, r)
			box.MinCol = minInt(box.MinCol, c)
			box.MaxRow = maxInt(box.MaxRow, r)
			box.MaxCol = maxInt(box.MaxCol, c)
		}
	}
	if !found {
		return BBox{}, false
	}
	return box, true
}
