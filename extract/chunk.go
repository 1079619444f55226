package extract

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ChunkInput holds session-level inputs and per-stage parameters for ExtractChunk
type ChunkInput struct {
	// Optional background. Heights are computed as background - frame when present.
	Background *mat.Dense
	// Optional ROI. Frames are masked with it and cropped to its bounding box.
	ROI *ROI
	// Heights outside [MinHeight, MaxHeight] are zeroed before cleaning
	MinHeight float64
	MaxHeight float64

	Clean  CleanParams
	Track  TrackParams
	Hampel HampelParams
	Smooth SmoothParams
	// Optional per-frame confidence values used by the smoother
	Confidence [][]float64

	CropSize       CropSize
	FlipClassifier FlipClassifier
	FlipSmoothing  int

	Scalars   ScalarParams
	Converter PixelConverter

	Logger *zap.Logger
}

// ChunkResult is the extraction output of one chunk. Per-identity slices are indexed [identity][frame].
type ChunkResult struct {
	Features      [][]Features
	Valid         []bool
	Scalars       [][]ScalarRecord
	Crops         [][]*mat.Dense
	FilteredCrops [][]*mat.Dense
	MaskCrops     [][]*mat.Dense
	Flips         [][]bool
	// Binary masks frames were tracked on, in ROI coordinates
	Masks []*Mask
	// Thresholded height frames before cleaning
	HeightFrames []*mat.Dense
	// Cleaned height frames used for tracking
	FilteredFrames []*mat.Dense
	// Tracker state after every frame
	States []TrackState
}

// InvalidFrames counts frames without tracked features
func (res *ChunkResult) InvalidFrames() int {
	n := 0
	for _, v := range res.Valid {
		if !v {
			n++
		}
	}
	return n
}

// heightFrames subtracts frames from the background (if any), applies the ROI and zeroes heights
// outside the configured range
func heightFrames(chunk []*mat.Dense, input ChunkInput) ([]*mat.Dense, error) {
	rows, cols, err := checkSameDims(chunk)
	if err != nil {
		return nil, err
	}
	if input.Background != nil {
		br, bc := input.Background.Dims()
		if br != rows || bc != cols {
			return nil, errors.Wrapf(ErrDimensionMismatch, "background is %dx%d, frames are %dx%d", br, bc, rows, cols)
		}
	}
	box := BBox{MinRow: 0, MinCol: 0, MaxRow: rows - 1, MaxCol: cols - 1}
	var roiMask *Mask
	if input.ROI != nil {
		if input.ROI.Mask == nil || input.ROI.Mask.Rows != rows || input.ROI.Mask.Cols != cols {
			return nil, errors.Wrap(ErrDimensionMismatch, "roi mask does not match frames")
		}
		if !input.ROI.BBox.Valid(rows, cols) {
			return nil, errors.New("roi bounding box is empty or out of frame bounds")
		}
		box = input.ROI.BBox
		roiMask = input.ROI.Mask
	}
	out := make([]*mat.Dense, len(chunk))
	for i, frame := range chunk {
		h := mat.NewDense(box.Height(), box.Width(), nil)
		for r := box.MinRow; r <= box.MaxRow; r++ {
			for c := box.MinCol; c <= box.MaxCol; c++ {
				if roiMask != nil && !roiMask.At(r, c) {
					continue
				}
				v := frame.At(r, c)
				if input.Background != nil {
					v = input.Background.At(r, c) - v
				}
				if math.IsNaN(v) || v < input.MinHeight || v > input.MaxHeight {
					continue
				}
				h.Set(r-box.MinRow, c-box.MinCol, v)
			}
		}
		out[i] = h
	}
	return out, nil
}

// identitySeries extracts the per-frame features of one identity
func identitySeries(frames []FrameFeatures, id int) []Features {
	out := make([]Features, len(frames))
	for i, ff := range frames {
		out[i] = ff.Mice[id]
	}
	return out
}

// ExtractChunk runs the full per-chunk pipeline: height conversion, ROI, cleaning, tracking,
// orientation unwrap, outlier repair, confidence smoothing, pose normalisation, flip correction
// and scalar computation. The given state is not modified, the state for the next chunk is returned.
func ExtractChunk(ctx context.Context, chunk []*mat.Dense, input ChunkInput, state TrackState) (*ChunkResult, TrackState, error) {
	logger := input.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	converter := input.Converter
	if converter == nil {
		converter = NewKinectConverterDefault()
	}

	heights, err := heightFrames(chunk, input)
	if err != nil {
		return nil, state, errors.Wrap(err, "can't compute height frames")
	}
	filtered, err := CleanFrames(ctx, heights, input.Clean)
	if err != nil {
		return nil, state, errors.Wrap(err, "can't clean chunk")
	}
	tracked, next, err := TrackFrames(filtered, input.Track, state)
	if err != nil {
		return nil, state, errors.Wrap(err, "can't track chunk")
	}

	numberOfMice := input.Track.NumberOfMice
	res := &ChunkResult{
		Features:       make([][]Features, numberOfMice),
		Valid:          make([]bool, len(chunk)),
		Scalars:        make([][]ScalarRecord, numberOfMice),
		Crops:          make([][]*mat.Dense, numberOfMice),
		FilteredCrops:  make([][]*mat.Dense, numberOfMice),
		MaskCrops:      make([][]*mat.Dense, numberOfMice),
		Flips:          make([][]bool, numberOfMice),
		Masks:          tracked.Masks,
		HeightFrames:   heights,
		FilteredFrames: filtered,
		States:         tracked.States,
	}
	for i, ff := range tracked.Frames {
		res.Valid[i] = ff.Valid
	}
	maskFrames := make([]*mat.Dense, len(tracked.Masks))
	for i, m := range tracked.Masks {
		maskFrames[i] = m.ToFrame()
	}

	for id := 0; id < numberOfMice; id++ {
		series := identitySeries(tracked.Frames, id)
		unwrapped := UnwrapOrientation(orientationsOf(series))
		for i := range series {
			series[i].Orientation = unwrapped[i]
		}
		series = HampelFilter(series, input.Hampel)
		series, err = SmoothFeatures(series, input.Confidence, input.Smooth)
		if err != nil {
			return nil, state, errors.Wrapf(err, "can't smooth identity %d", id)
		}

		crops, err := CropAndRotateFrames(heights, series, input.CropSize)
		if err != nil {
			return nil, state, errors.Wrapf(err, "can't crop identity %d", id)
		}
		filteredCrops, err := CropAndRotateFrames(filtered, series, input.CropSize)
		if err != nil {
			return nil, state, errors.Wrapf(err, "can't crop filtered identity %d", id)
		}
		maskCrops, err := CropAndRotateFrames(maskFrames, series, input.CropSize)
		if err != nil {
			return nil, state, errors.Wrapf(err, "can't crop masks of identity %d", id)
		}

		flips, filteredCrops, series := CorrectFlips(ctx, input.FlipClassifier, filteredCrops, series, input.FlipSmoothing, logger.With(zap.Int("identity", id)))
		res.Flips[id] = flips
		res.Crops[id] = FlipCrops(crops, flips)
		res.FilteredCrops[id] = filteredCrops
		res.MaskCrops[id] = FlipCrops(maskCrops, flips)
		res.Features[id] = series

		scalars, err := ComputeScalars(filtered, series, input.Scalars, converter)
		if err != nil {
			return nil, state, errors.Wrapf(err, "can't compute scalars of identity %d", id)
		}
		res.Scalars[id] = scalars
	}

	logger.Debug("chunk extracted",
		zap.String("run_id", next.RunID.String()),
		zap.Int("frames", len(chunk)),
		zap.Int("invalid_frames", res.InvalidFrames()),
	)
	return res, next, nil
}

func orientationsOf(series []Features) []float64 {
	out := make([]float64, len(series))
	for i, f := range series {
		out[i] = f.Orientation
	}
	return out
}
