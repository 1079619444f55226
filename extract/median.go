package extract

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MedianBlur replaces each pixel with the median of its ksize x ksize neighbourhood.
// Borders are replicated. ksize must be odd and positive.
func MedianBlur(src *mat.Dense, ksize int) (*mat.Dense, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, errors.Wrapf(ErrInvalidKernel, "median blur kernel %d", ksize)
	}
	if ksize == 1 {
		return cloneFrame(src), nil
	}
	rows, cols := src.Dims()
	half := ksize / 2
	dst := mat.NewDense(rows, cols, nil)
	window := make([]float64, 0, ksize*ksize)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			window = window[:0]
			for dr := -half; dr <= half; dr++ {
				rr := minInt(maxInt(r+dr, 0), rows-1)
				for dc := -half; dc <= half; dc++ {
					cc := minInt(maxInt(c+dc, 0), cols-1)
					window = append(window, src.At(rr, cc))
				}
			}
			sort.Float64s(window)
			dst.Set(r, c, window[len(window)/2])
		}
	}
	return dst, nil
}

// medfilt1D is a one-dimensional median filter with zero padding at both ends
func medfilt1D(series []float64, ksize int) []float64 {
	n := len(series)
	out := make([]float64, n)
	half := ksize / 2
	window := make([]float64, ksize)
	for i := 0; i < n; i++ {
		for k := -half; k <= half; k++ {
			j := i + k
			if j < 0 || j >= n {
				window[k+half] = 0
				continue
			}
			window[k+half] = series[j]
		}
		sort.Float64s(window)
		out[i] = window[half]
	}
	return out
}

// TemporalMedian filters every pixel along the frame axis with a ksize median.
// The sequence ends are zero padded. Frames must share dimensions.
func TemporalMedian(frames []*mat.Dense, ksize int) ([]*mat.Dense, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, errors.Wrapf(ErrInvalidKernel, "temporal median kernel %d", ksize)
	}
	rows, cols, err := checkSameDims(frames)
	if err != nil {
		return nil, errors.Wrap(err, "temporal median")
	}
	out := make([]*mat.Dense, len(frames))
	for i := range out {
		out[i] = mat.NewDense(rows, cols, nil)
	}
	series := make([]float64, len(frames))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for i, f := range frames {
				series[i] = f.At(r, c)
			}
			filtered := medfilt1D(series, ksize)
			for i, v := range filtered {
				out[i].Set(r, c, v)
			}
		}
	}
	return out, nil
}
