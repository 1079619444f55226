package extract

import (
	"math"

	"github.com/montanaflynn/stats"
)

// HampelParams configures OutlierFilter. A non-positive span disables filtering of that series.
type HampelParams struct {
	CentroidSpan  int     `yaml:"centroid_span"`
	CentroidSigma float64 `yaml:"centroid_sigma"`
	AngleSpan     int     `yaml:"angle_span"`
	AngleSigma    float64 `yaml:"angle_sigma"`
}

// hampel replaces every value deviating from its window median by more than sigma times the
// window MAD with that median. Windows are centred, padded with missing values at the series
// ends, and ignore missing values. Statistics are always taken from the unfiltered series.
func hampel(series []float64, span int, sigma float64) []float64 {
	out := make([]float64, len(series))
	copy(out, series)
	if span <= 0 {
		return out
	}
	half := span / 2
	window := make([]float64, 0, span)
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		window = window[:0]
		for j := i - half; j < i-half+span; j++ {
			if j < 0 || j >= len(series) || math.IsNaN(series[j]) {
				continue
			}
			window = append(window, series[j])
		}
		med, err := stats.Median(window)
		if err != nil {
			continue
		}
		mad, err := stats.MedianAbsoluteDeviation(window)
		if err != nil {
			continue
		}
		if math.Abs(v-med) > sigma*mad {
			out[i] = med
		}
	}
	return out
}

// HampelFilter repairs spikes in the centroid (x and y independently) and orientation series of one identity
func HampelFilter(features []Features, params HampelParams) []Features {
	n := len(features)
	xs, ys, thetas := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, f := range features {
		xs[i], ys[i], thetas[i] = f.Centroid.X, f.Centroid.Y, f.Orientation
	}
	xs = hampel(xs, params.CentroidSpan, params.CentroidSigma)
	ys = hampel(ys, params.CentroidSpan, params.CentroidSigma)
	thetas = hampel(thetas, params.AngleSpan, params.AngleSigma)
	out := make([]Features, n)
	copy(out, features)
	for i := range out {
		out[i].Centroid = Point{X: xs[i], Y: ys[i]}
		out[i].Orientation = thetas[i]
	}
	return out
}
