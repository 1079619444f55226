package extract

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// CleanParams configures FramePreprocessor. Any step with a nil element, empty kernel list
// or non-positive iteration count is skipped.
type CleanParams struct {
	// Erosion applied first (removes small speckles)
	MinElement    *StructuringElement
	MinIterations int
	// Spatial median blur kernels, applied in sequence
	SpatialKernels []int
	// Opening (erode, then dilate) removing thin structures such as tails
	TailElement    *StructuringElement
	TailIterations int
	// Temporal median kernels across the frame axis, applied in sequence
	TemporalKernels []int
	// Max number of frames cleaned concurrently; <= 0 means GOMAXPROCS
	Workers int
}

// cleanFrame runs the per-frame spatial steps in their fixed order
func cleanFrame(frame *mat.Dense, params CleanParams) (*mat.Dense, error) {
	out := cloneFrame(frame)
	if params.MinElement != nil && params.MinIterations > 0 {
		out = Erode(out, params.MinElement, params.MinIterations)
	}
	if allPositive(params.SpatialKernels) {
		for _, k := range params.SpatialKernels {
			var err error
			out, err = MedianBlur(out, k)
			if err != nil {
				return nil, err
			}
		}
	}
	if params.TailElement != nil && params.TailIterations > 0 {
		out = Open(out, params.TailElement, params.TailIterations)
	}
	return out, nil
}

// CleanFrames applies spatial then temporal filtering to the batch. The input is not modified.
// Spatial filtering of independent frames runs concurrently, temporal filtering runs after all
// frames are cleaned.
func CleanFrames(ctx context.Context, frames []*mat.Dense, params CleanParams) ([]*mat.Dense, error) {
	if _, _, err := checkSameDims(frames); err != nil {
		return nil, errors.Wrap(err, "can't clean frames")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]*mat.Dense, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range frames {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cleaned, err := cleanFrame(frames[i], params)
			if err != nil {
				return errors.Wrapf(err, "can't clean frame %d", i)
			}
			out[i] = cleaned
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if allPositive(params.TemporalKernels) {
		for _, k := range params.TemporalKernels {
			var err error
			out, err = TemporalMedian(out, k)
			if err != nil {
				return nil, errors.Wrap(err, "can't apply temporal filter")
			}
		}
	}
	return out, nil
}
