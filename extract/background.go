package extract

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FrameSource yields dense depth frames for explicit frame indices
type FrameSource interface {
	// NumFrames returns number of frames in the recording
	NumFrames() int
	// Dims returns (rows, cols) of every frame
	Dims() (int, int)
	// ReadFrames returns frames for the given indices in the same order
	ReadFrames(ctx context.Context, indices []int) ([]*mat.Dense, error)
}

// BackgroundParams controls background estimation
type BackgroundParams struct {
	// Every FrameStride-th frame is sampled
	FrameStride int
	// Median blur kernel applied to each sample
	MedianScale int
}

// EstimateBackground reduces sampled frames to a single reference image: the per-pixel
// median (NaN samples ignored) of median-blurred frames.
func EstimateBackground(ctx context.Context, src FrameSource, params BackgroundParams) (*mat.Dense, error) {
	stride := maxInt(params.FrameStride, 1)
	indices := make([]int, 0)
	for i := 0; i < src.NumFrames(); i += stride {
		indices = append(indices, i)
	}
	if len(indices) == 0 {
		return nil, ErrNoFrames
	}
	samples := make([]*mat.Dense, 0, len(indices))
	for _, idx := range indices {
		frames, err := src.ReadFrames(ctx, []int{idx})
		if err != nil {
			return nil, errors.Wrapf(err, "can't read frame %d for background", idx)
		}
		if len(frames) != 1 {
			return nil, errors.Errorf("source returned %d frames for index %d", len(frames), idx)
		}
		blurred, err := MedianBlur(frames[0], params.MedianScale)
		if err != nil {
			return nil, errors.Wrap(err, "can't blur background sample")
		}
		samples = append(samples, blurred)
	}
	return MedianFrame(samples)
}

// MedianFrame returns the NaN-ignoring per-pixel median of the frames.
// Pixels that are NaN in every frame stay NaN.
func MedianFrame(frames []*mat.Dense) (*mat.Dense, error) {
	rows, cols, err := checkSameDims(frames)
	if err != nil {
		return nil, errors.Wrap(err, "median frame")
	}
	out := mat.NewDense(rows, cols, nil)
	values := make([]float64, len(frames))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for i, f := range frames {
				values[i] = f.At(r, c)
			}
			med, err := stats.Median(finite(values))
			if err != nil {
				med = math.NaN()
			}
			out.Set(r, c, med)
		}
	}
	return out, nil
}
