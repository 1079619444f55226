package extract

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ScalarParams configures ScalarFeatureCalculator
type ScalarParams struct {
	// Height range (inclusive) counted as animal
	MinHeight float64
	MaxHeight float64
	// Sensor calibration depth passed to the converter
	TrueDepth float64
}

// ScalarRecord holds physical measurements of one identity in one frame. NaN marks missing values.
type ScalarRecord struct {
	CentroidXPx   float64
	CentroidYPx   float64
	CentroidXMm   float64
	CentroidYMm   float64
	Velocity2DPx  float64
	Velocity3DPx  float64
	Velocity2DMm  float64
	Velocity3DMm  float64
	VelocityTheta float64
	WidthPx       float64
	LengthPx      float64
	WidthMm       float64
	LengthMm      float64
	AreaPx        float64
	AreaMm        float64
	HeightAveMm   float64
	Angle         float64
}

// inRangeHeights returns heights of pixels within [minHeight, maxHeight]
func inRangeHeights(frame *mat.Dense, minHeight, maxHeight float64) []float64 {
	if frame == nil {
		return nil
	}
	rows, cols := frame.Dims()
	heights := make([]float64, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := frame.At(r, c)
			if v >= minHeight && v <= maxHeight {
				heights = append(heights, v)
			}
		}
	}
	return heights
}

// firstDiff differences the series after duplicating its first value, so out[0] is zero
func firstDiff(series []float64) []float64 {
	out := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		out[i] = series[i] - series[i-1]
	}
	if len(series) > 0 {
		out[0] = series[0] - series[0]
	}
	return out
}

// ComputeScalars derives pixel and millimetre measurements of one identity from its tracked
// features and the height frames it was tracked on
func ComputeScalars(frames []*mat.Dense, features []Features, params ScalarParams, conv PixelConverter) ([]ScalarRecord, error) {
	if len(frames) != len(features) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d frames, %d feature records", len(frames), len(features))
	}
	if conv == nil {
		return nil, errors.New("pixel converter is required")
	}
	n := len(frames)
	records := make([]ScalarRecord, n)
	xPx, yPx := make([]float64, n), make([]float64, n)
	xMm, yMm := make([]float64, n), make([]float64, n)
	heights := make([]float64, n)
	for i, f := range features {
		rec := &records[i]
		cx, cy := f.Centroid.X, f.Centroid.Y
		mmX, mmY := conv.PxToMm(cx, cy, params.TrueDepth)
		shiftX, shiftY := conv.PxToMm(cx+1, cy+1, params.TrueDepth)
		scaleX, scaleY := math.Abs(shiftX-mmX), math.Abs(shiftY-mmY)

		rec.CentroidXPx, rec.CentroidYPx = cx, cy
		rec.CentroidXMm, rec.CentroidYMm = mmX, mmY
		rec.WidthPx = math.Min(f.AxisLength[0], f.AxisLength[1])
		rec.LengthPx = math.Max(f.AxisLength[0], f.AxisLength[1])
		rec.WidthMm = rec.WidthPx * scaleY
		rec.LengthMm = rec.LengthPx * scaleX

		inRange := inRangeHeights(frames[i], params.MinHeight, params.MaxHeight)
		rec.AreaPx = float64(len(inRange))
		rec.AreaMm = rec.AreaPx * (scaleX + scaleY) / 2
		if len(inRange) > 0 {
			rec.HeightAveMm = stat.Mean(inRange, nil)
		}
		rec.Angle = f.Orientation

		xPx[i], yPx[i] = cx, cy
		xMm[i], yMm[i] = mmX, mmY
		heights[i] = rec.HeightAveMm
	}

	dxPx, dyPx := firstDiff(xPx), firstDiff(yPx)
	dxMm, dyMm := firstDiff(xMm), firstDiff(yMm)
	dz := firstDiff(heights)
	for i := range records {
		rec := &records[i]
		rec.Velocity2DPx = math.Hypot(dxPx[i], dyPx[i])
		rec.Velocity3DPx = math.Sqrt(dxPx[i]*dxPx[i] + dyPx[i]*dyPx[i] + dz[i]*dz[i])
		rec.Velocity2DMm = math.Hypot(dxMm[i], dyMm[i])
		rec.Velocity3DMm = math.Sqrt(dxMm[i]*dxMm[i] + dyMm[i]*dyMm[i] + dz[i]*dz[i])
		rec.VelocityTheta = math.Atan2(dyMm[i], dxMm[i])
	}
	return records, nil
}
