package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testPlaneParams() PlaneParams {
	return PlaneParams{
		DepthMin:       650,
		DepthMax:       750,
		Iterations:     200,
		NoiseTolerance: 5,
		InlierRatio:    0.1,
		Seed:           1,
	}
}

func TestFitPlaneTilted(t *testing.T) {
	depth := mat.NewDense(30, 40, nil)
	for r := 0; r < 30; r++ {
		for c := 0; c < 40; c++ {
			depth.Set(r, c, 700+0.5*float64(c)-0.25*float64(r))
		}
	}
	// clutter above the floor
	fillRect(depth, 10, 10, 14, 14, 660)

	plane, dists := FitPlane(depth, nil, testPlaneParams())
	require.NotNil(t, plane)
	require.NotNil(t, dists)
	assert.InDelta(t, 0.0, dists.At(0, 0), 1e-6)
	assert.InDelta(t, 0.0, dists.At(29, 39), 1e-6)
	assert.Greater(t, dists.At(12, 12), 5.0)
	// normal is parallel to (0.5, -0.25, -1)
	expected := math.Sqrt(0.25 + 0.0625 + 1)
	assert.InDelta(t, 1.0/expected, math.Abs(plane.Normal.Z), 1e-6)
}

func TestFitPlaneDegenerate(t *testing.T) {
	depth := mat.NewDense(10, 10, nil)
	plane, dists := FitPlane(depth, nil, testPlaneParams())
	assert.Nil(t, plane)
	assert.Nil(t, dists)

	res, err := GetROIs(depth, ROIParams{Plane: testPlaneParams()})
	require.NoError(t, err)
	assert.Empty(t, res.ROIs)
}

func TestFitPlaneReproducible(t *testing.T) {
	depth := mat.NewDense(20, 20, nil)
	for r := 0; r < 20; r++ {
		for c := 0; c < 20; c++ {
			depth.Set(r, c, 700+float64((r*7+c*3)%5))
		}
	}
	p1, _ := FitPlane(depth, nil, testPlaneParams())
	p2, _ := FitPlane(depth, nil, testPlaneParams())
	require.NotNil(t, p1)
	assert.Equal(t, *p1, *p2)
}

func twoPatchFrame() *mat.Dense {
	depth := mat.NewDense(40, 40, nil)
	// large patch around the image centre
	fillRect(depth, 12, 12, 27, 27, 700)
	// small patch in the corner
	fillRect(depth, 1, 1, 5, 5, 700)
	return depth
}

func TestGetROIsRanking(t *testing.T) {
	depth := twoPatchFrame()
	res, err := GetROIs(depth, ROIParams{
		Plane:     testPlaneParams(),
		Weights:   ROIWeights{Area: 1, Extent: 0.1, CenterDist: 1},
		FillHoles: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Plane)
	require.Len(t, res.ROIs, 2)

	assert.Equal(t, 256, res.ROIs[0].Mask.Count())
	assert.Equal(t, BBox{MinRow: 12, MinCol: 12, MaxRow: 27, MaxCol: 27}, res.ROIs[0].BBox)
	assert.Equal(t, 25, res.ROIs[1].Mask.Count())
	assert.Less(t, res.ROIs[0].Rank, res.ROIs[1].Rank)
	for _, roi := range res.ROIs {
		assert.True(t, roi.BBox.Valid(40, 40))
	}

	// negative weights invert the preference
	res, err = GetROIs(depth, ROIParams{
		Plane:   testPlaneParams(),
		Weights: ROIWeights{Area: -1, Extent: 0, CenterDist: -1},
	})
	require.NoError(t, err)
	require.Len(t, res.ROIs, 2)
	assert.Equal(t, 25, res.ROIs[0].Mask.Count())
}

func TestGetROIsMorphologyAndOverlap(t *testing.T) {
	depth := twoPatchFrame()
	dilate, err := NewStructuringElement(ElementRect, 3, 3)
	require.NoError(t, err)
	params := ROIParams{
		Plane:            testPlaneParams(),
		DilateElement:    dilate,
		DilateIterations: 1,
		Weights:          ROIWeights{Area: 1, Extent: 1, CenterDist: 1},
	}
	res, err := GetROIs(depth, params)
	require.NoError(t, err)
	require.Len(t, res.ROIs, 2)
	assert.Equal(t, BBox{MinRow: 11, MinCol: 11, MaxRow: 28, MaxCol: 28}, res.ROIs[0].BBox)
	assert.Equal(t, BBox{MinRow: 0, MinCol: 0, MaxRow: 6, MaxCol: 6}, res.ROIs[1].BBox)

	// the claimed region is dropped from the candidates
	params.Overlap = res.ROIs[0].Mask
	res, err = GetROIs(depth, params)
	require.NoError(t, err)
	require.Len(t, res.ROIs, 1)
	assert.Equal(t, BBox{MinRow: 0, MinCol: 0, MaxRow: 6, MaxCol: 6}, res.ROIs[0].BBox)
}

func TestGetROIsInvalidGradientKernel(t *testing.T) {
	_, err := GetROIs(twoPatchFrame(), ROIParams{
		Plane:          testPlaneParams(),
		GradientFilter: true,
		GradientKernel: 4,
	})
	assert.ErrorIs(t, err, ErrInvalidKernel)
}

func TestRankMax(t *testing.T) {
	assert.Equal(t, []int{1, 3, 3, 4}, rankMax([]float64{1, 2, 2, 5}))
	assert.Equal(t, []int{2, 2}, rankMax([]float64{7, 7}))
}
