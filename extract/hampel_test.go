package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHampelSpike(t *testing.T) {
	series := []float64{1, 1, 1, 10, 1, 1, 1}
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1}, hampel(series, 5, 3))
	assert.Equal(t, 10.0, series[3])
}

func TestHampelKeepsTrend(t *testing.T) {
	series := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, series, hampel(series, 5, 3))
	assert.Equal(t, series, hampel(series, 0, 3))
}

func TestHampelMissing(t *testing.T) {
	series := []float64{1, math.NaN(), 1, 10, 1, 1}
	out := hampel(series, 5, 3)
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 1.0, out[3])
	assert.Equal(t, 1.0, out[0])
}

func TestHampelFilter(t *testing.T) {
	features := make([]Features, 7)
	for i := range features {
		features[i] = blob(float64(i), 5, 0.5)
	}
	features[3].Centroid.X = 40
	features[3].Orientation = 3
	features[5] = MissingFeatures()

	out := HampelFilter(features, HampelParams{CentroidSpan: 5, CentroidSigma: 3, AngleSpan: 0, AngleSigma: 3})
	// window 1, 2, 40, 4 skips the missing frame
	assert.InDelta(t, 3.0, out[3].Centroid.X, eps)
	assert.Equal(t, 5.0, out[3].Centroid.Y)
	// angle filtering is disabled
	assert.Equal(t, 3.0, out[3].Orientation)
	assert.False(t, out[5].Valid)
	assert.True(t, out[5].Centroid.IsMissing())
	assert.Equal(t, 40.0, features[3].Centroid.X)

	out = HampelFilter(features, HampelParams{CentroidSpan: 5, CentroidSigma: 3, AngleSpan: 5, AngleSigma: 3})
	assert.Equal(t, 0.5, out[3].Orientation)
}
