package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// scaleConverter multiplies x by 2 and y by 3
type scaleConverter struct{}

func (scaleConverter) PxToMm(x, y, trueDepth float64) (float64, float64) {
	return 2 * x, 3 * y
}

func TestKinectConverter(t *testing.T) {
	conv := NewKinectConverterDefault()
	x, y := conv.PxToMm(256, 212, 673.1)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	x, y = conv.PxToMm(266, 200, 673.1)
	assert.InDelta(t, 16.19913028, x, eps)
	assert.InDelta(t, -19.94911335, y, eps)
}

func TestComputeScalars(t *testing.T) {
	heights := mat.NewDense(1, 5, []float64{5, 10, 50, 100, 150})
	frames := []*mat.Dense{heights, heights, heights}
	features := []Features{
		{Valid: true, Centroid: NewPoint(0, 0), Orientation: 0.1, AxisLength: [2]float64{10, 4}},
		{Valid: true, Centroid: NewPoint(3, 4), Orientation: 0.2, AxisLength: [2]float64{4, 10}},
		{Valid: true, Centroid: NewPoint(3, 4), Orientation: 0.3, AxisLength: [2]float64{10, 4}},
	}
	records, err := ComputeScalars(frames, features, ScalarParams{MinHeight: 10, MaxHeight: 100, TrueDepth: 700}, scaleConverter{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	// first sample differences against itself
	assert.Equal(t, 0.0, first.Velocity2DPx)
	assert.Equal(t, 0.0, first.Velocity3DPx)
	assert.Equal(t, 0.0, first.Velocity2DMm)
	assert.Equal(t, 0.0, first.Velocity3DMm)
	assert.Equal(t, 0.0, first.VelocityTheta)

	for i, rec := range records {
		// range bounds are inclusive
		assert.Equal(t, 3.0, rec.AreaPx)
		assert.InDelta(t, 7.5, rec.AreaMm, eps)
		assert.InDelta(t, 160.0/3.0, rec.HeightAveMm, eps)
		assert.Equal(t, 4.0, rec.WidthPx)
		assert.Equal(t, 10.0, rec.LengthPx)
		assert.InDelta(t, 12.0, rec.WidthMm, eps)
		assert.InDelta(t, 20.0, rec.LengthMm, eps)
		assert.Equal(t, features[i].Orientation, rec.Angle)
	}

	second := records[1]
	assert.Equal(t, 6.0, second.CentroidXMm)
	assert.Equal(t, 12.0, second.CentroidYMm)
	assert.InDelta(t, 5.0, second.Velocity2DPx, eps)
	assert.InDelta(t, 5.0, second.Velocity3DPx, eps)
	assert.InDelta(t, math.Hypot(6, 12), second.Velocity2DMm, eps)
	assert.InDelta(t, math.Atan2(12, 6), second.VelocityTheta, eps)
	assert.Equal(t, 0.0, records[2].Velocity2DPx)
}

func TestComputeScalarsMissing(t *testing.T) {
	frames := []*mat.Dense{NewFrame(2, 2), NewFrame(2, 2)}
	features := []Features{MissingFeatures(), blob(1, 1, 0)}
	records, err := ComputeScalars(frames, features, ScalarParams{MinHeight: 10, MaxHeight: 100}, scaleConverter{})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(records[0].CentroidXMm))
	assert.Equal(t, 0.0, records[0].AreaPx)
	assert.Equal(t, 0.0, records[0].HeightAveMm)
	assert.True(t, math.IsNaN(records[1].Velocity2DPx))

	_, err = ComputeScalars(frames, features[:1], ScalarParams{}, scaleConverter{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ComputeScalars(frames, features, ScalarParams{}, nil)
	assert.Error(t, err)
}
