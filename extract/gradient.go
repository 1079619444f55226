package extract

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// binomialRow returns the n-th row of Pascal's triangle
func binomialRow(n int) []float64 {
	row := []float64{1}
	for i := 0; i < n; i++ {
		next := make([]float64, len(row)+1)
		for j := range next {
			if j < len(row) {
				next[j] += row[j]
			}
			if j > 0 {
				next[j] += row[j-1]
			}
		}
		row = next
	}
	return row
}

// sobelKernels returns the 1D smoothing and first-derivative kernels for an odd ksize.
// ksize 1 means no smoothing and a central difference.
func sobelKernels(ksize int) (smooth, deriv []float64, err error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, nil, errors.Wrapf(ErrInvalidKernel, "sobel kernel %d", ksize)
	}
	diff := []float64{-1, 0, 1}
	if ksize == 1 {
		return []float64{1}, diff, nil
	}
	smooth = binomialRow(ksize - 1)
	base := binomialRow(ksize - 3)
	deriv = make([]float64, ksize)
	for i, b := range base {
		for j, d := range diff {
			deriv[i+j] += b * d
		}
	}
	return smooth, deriv, nil
}

// reflect101 maps an out-of-range index back into [0, n) mirroring around the edge pixel
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// separable correlates src with kernel kx along columns and ky along rows
func separable(src *mat.Dense, kx, ky []float64) *mat.Dense {
	rows, cols := src.Dims()
	tmp := mat.NewDense(rows, cols, nil)
	hx := len(kx) / 2
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum := 0.0
			for j, k := range kx {
				sum += k * src.At(r, reflect101(c+j-hx, cols))
			}
			tmp.Set(r, c, sum)
		}
	}
	dst := mat.NewDense(rows, cols, nil)
	hy := len(ky) / 2
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum := 0.0
			for i, k := range ky {
				sum += k * tmp.At(reflect101(r+i-hy, rows), c)
			}
			dst.Set(r, c, sum)
		}
	}
	return dst
}

// Sobel returns horizontal and vertical first derivatives of the frame
func Sobel(src *mat.Dense, ksize int) (*mat.Dense, *mat.Dense, error) {
	smooth, deriv, err := sobelKernels(ksize)
	if err != nil {
		return nil, nil, err
	}
	gx := separable(src, deriv, smooth)
	gy := separable(src, smooth, deriv)
	return gx, gy, nil
}

// GradientMask marks pixels whose absolute horizontal and vertical derivatives are both below threshold
func GradientMask(src *mat.Dense, ksize int, threshold float64) (*Mask, error) {
	gx, gy, err := Sobel(src, ksize)
	if err != nil {
		return nil, errors.Wrap(err, "gradient mask")
	}
	rows, cols := src.Dims()
	m := NewMask(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Data[r*cols+c] = math.Abs(gx.At(r, c)) < threshold && math.Abs(gy.At(r, c)) < threshold
		}
	}
	return m, nil
}
