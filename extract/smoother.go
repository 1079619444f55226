package extract

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// SmoothParams holds clip bounds mapping mean frame confidence to a smoothing weight
type SmoothParams struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// confidenceWeights maps per-frame confidence to [0, 1]. Frames without confidence values keep
// their own value (weight 1).
func confidenceWeights(confidence [][]float64, params SmoothParams) []float64 {
	weights := make([]float64, len(confidence))
	for i, values := range confidence {
		if len(values) == 0 {
			weights[i] = 1
			continue
		}
		mean := floats.Sum(values) / float64(len(values))
		weights[i] = clamp01((mean - params.Low) / (params.High - params.Low))
	}
	return weights
}

// fillNearest replaces missing entries with the nearest valid one; equidistant neighbours resolve
// to the earlier frame. A series without any valid entry is returned unchanged.
func fillNearest(series []float64) []float64 {
	out := make([]float64, len(series))
	copy(out, series)
	valid := make([]int, 0, len(series))
	for i, v := range series {
		if !math.IsNaN(v) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 || len(valid) == len(series) {
		return out
	}
	k := 0
	for i, v := range series {
		if !math.IsNaN(v) {
			continue
		}
		for k+1 < len(valid) && valid[k+1] < i {
			k++
		}
		nearest := valid[k]
		if k+1 < len(valid) && valid[k+1]-i < absInt(i-nearest) {
			nearest = valid[k+1]
		}
		out[i] = series[nearest]
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// smoothSeries runs the forward then backward confidence-weighted passes
func smoothSeries(series []float64, weights []float64) []float64 {
	out := fillNearest(series)
	for i := 2; i < len(out); i++ {
		out[i] = (1-weights[i])*out[i-1] + weights[i]*out[i]
	}
	for i := len(out) - 2; i >= 0; i-- {
		out[i] = (1-weights[i])*out[i+1] + weights[i]*out[i]
	}
	return out
}

// SmoothFeatures applies bidirectional confidence-weighted smoothing to the features of one identity.
// Returns an unchanged copy when confidence is nil or Low >= High.
func SmoothFeatures(features []Features, confidence [][]float64, params SmoothParams) ([]Features, error) {
	out := make([]Features, len(features))
	copy(out, features)
	if confidence == nil || params.Low >= params.High {
		return out, nil
	}
	if len(confidence) != len(features) {
		return nil, errors.Wrapf(ErrConfidenceLength, "%d confidence frames for %d feature frames", len(confidence), len(features))
	}
	weights := confidenceWeights(confidence, params)

	n := len(features)
	channels := make([][]float64, 5)
	for c := range channels {
		channels[c] = make([]float64, n)
	}
	for i, f := range features {
		channels[0][i] = f.Centroid.X
		channels[1][i] = f.Centroid.Y
		channels[2][i] = f.Orientation
		channels[3][i] = f.AxisLength[0]
		channels[4][i] = f.AxisLength[1]
	}
	for c := range channels {
		channels[c] = smoothSeries(channels[c], weights)
	}
	for i := range out {
		out[i].Centroid = Point{X: channels[0][i], Y: channels[1][i]}
		out[i].Orientation = channels[2][i]
		out[i].AxisLength = [2]float64{channels[3][i], channels[4][i]}
		out[i].Valid = true
		for c := range channels {
			if math.IsNaN(channels[c][i]) || math.IsInf(channels[c][i], 0) {
				out[i].Valid = false
				break
			}
		}
	}
	return out, nil
}
