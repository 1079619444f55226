package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoIdentityState() TrackState {
	state := NewTrackState(2)
	state.Initialized = true
	state.Centroids[0] = NewPoint(10, 10)
	state.Orientations[0] = 0
	state.Centroids[1] = NewPoint(40, 10)
	state.Orientations[1] = math.Pi / 2
	return state
}

func blob(x, y, theta float64) Features {
	return Features{
		Valid:       true,
		Centroid:    NewPoint(x, y),
		Orientation: theta,
		AxisLength:  [2]float64{10, 4},
	}
}

func TestScoreBlobs(t *testing.T) {
	state := twoIdentityState()
	scores := scoreBlobs(&state, []Features{blob(12, 10, math.Pi/2), MissingFeatures()})
	require.Len(t, scores.distance, 2)
	assert.InDelta(t, 2.0/28.0, scores.distance[0][0], eps)
	assert.InDelta(t, 1.0, scores.distance[0][1], eps)
	assert.InDelta(t, 0.0, scores.similarity[0][0], eps)
	assert.InDelta(t, 1.0, scores.similarity[0][1], eps)
	// missing blob is far from everyone and neutral in orientation
	assert.Equal(t, []float64{1, 1}, scores.distance[1])
	assert.Equal(t, []float64{0, 0}, scores.similarity[1])
}

func TestGreedyNearestDuplicates(t *testing.T) {
	state := twoIdentityState()
	blobs := []Features{blob(12, 10, math.Pi/2), blob(14, 10, 0)}
	assigned := greedyNearest(scoreBlobs(&state, blobs))
	assert.Equal(t, []int{0, 0}, assigned)
	assert.Equal(t, []int{0}, duplicatedIDs(assigned))
	assert.Equal(t, []int{0, 1}, freePool(assigned, 2, duplicatedIDs(assigned)))
}

func TestDuplicatedIDsOrder(t *testing.T) {
	assert.Empty(t, duplicatedIDs([]int{0, 1, 2}))
	assert.Equal(t, []int{3, 1}, duplicatedIDs([]int{3, 1, 3, 1, 0}))
	// unclaimed identity 2 joins the duplicated ones
	assert.Equal(t, []int{1, 2, 3, 4}, freePool([]int{3, 1, 3, 1, 0}, 5, []int{3, 1}))
	assert.Equal(t, []int{2}, freePool([]int{0, 1}, 3, nil))
}

func TestSolveMaxSimilarity(t *testing.T) {
	cols, err := solveMaxSimilarity([][]float64{
		{0, 1},
		{1, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, cols)

	// fewer rows than columns, negative similarities still win over padding
	cols, err = solveMaxSimilarity([][]float64{
		{-1, -0.5, -0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, cols)

	cols, err = solveMaxSimilarity(nil)
	require.NoError(t, err)
	assert.Empty(t, cols)

	_, err = solveMaxSimilarity([][]float64{{1, 0}, {0, 1}, {1, 1}})
	assert.ErrorIs(t, err, ErrIdentityPoolExhausted)
}

func TestSolveMaxSimilarityTies(t *testing.T) {
	// equal similarities keep the pool order
	cols, err := solveMaxSimilarity([][]float64{
		{1, 1},
		{1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, cols)

	cols, err = solveMaxSimilarity([][]float64{
		{0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, cols)

	// a tied row takes the lowest free column
	cols, err = solveMaxSimilarity([][]float64{
		{0.2, 0.7, 0.7},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, cols)

	// a strict optimum is never traded for order
	cols, err = solveMaxSimilarity([][]float64{
		{0.9, 1},
		{1, 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, cols)
}

func TestPreferLowerColumns(t *testing.T) {
	similarity := [][]float64{
		{1, 1, 0},
		{1, 1, 0},
	}
	cols := []int{1, 0}
	preferLowerColumns(similarity, cols)
	assert.Equal(t, []int{0, 1}, cols)

	cols = []int{2, 1}
	preferLowerColumns([][]float64{{0, 1, 1}, {1, 1, 0}}, cols)
	assert.Equal(t, []int{1, 0}, cols)
}

func TestAssignIdentitiesRepair(t *testing.T) {
	state := twoIdentityState()
	// both blobs are closest to identity 0, orientation decides
	assigned, err := assignIdentities(&state, []Features{blob(12, 10, math.Pi/2), blob(14, 10, 0)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, assigned)

	// no duplicates keeps the greedy answer
	assigned, err = assignIdentities(&state, []Features{blob(39, 11, 0), blob(11, 9, math.Pi/2)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, assigned)
}

func TestAssignIdentitiesBijection(t *testing.T) {
	state := NewTrackState(3)
	state.Initialized = true
	state.Centroids[0] = NewPoint(0, 0)
	state.Centroids[1] = NewPoint(50, 0)
	state.Centroids[2] = NewPoint(100, 0)
	state.Orientations[0] = 0
	state.Orientations[1] = math.Pi / 2
	state.Orientations[2] = math.Pi / 4
	blobs := []Features{blob(1, 0, math.Pi/4), blob(2, 0, math.Pi/2), blob(3, 0, 0)}
	assigned, err := assignIdentities(&state, blobs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, assigned)
}
