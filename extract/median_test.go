package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMedianBlurRemovesSaltNoise(t *testing.T) {
	frame := mat.NewDense(5, 5, nil)
	fillRect(frame, 0, 0, 4, 4, 10)
	frame.Set(2, 2, 1000)

	blurred, err := MedianBlur(frame, 3)
	require.NoError(t, err)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			assert.Equal(t, 10.0, blurred.At(r, c))
		}
	}
	assert.Equal(t, 1000.0, frame.At(2, 2))

	_, err = MedianBlur(frame, 4)
	assert.ErrorIs(t, err, ErrInvalidKernel)

	same, err := MedianBlur(frame, 1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(frame, same))
}

func TestMedfilt1DZeroPadding(t *testing.T) {
	out := medfilt1D([]float64{5, 5, 5, 5}, 3)
	// ends see a zero pad: median(0, 5, 5) = 5
	assert.Equal(t, []float64{5, 5, 5, 5}, out)

	out = medfilt1D([]float64{5, 1, 5}, 3)
	assert.Equal(t, []float64{1, 5, 1}, out)

	out = medfilt1D([]float64{4, 4, 9, 4, 4}, 3)
	assert.Equal(t, []float64{4, 4, 4, 4, 4}, out)
}

func TestTemporalMedian(t *testing.T) {
	frames := make([]*mat.Dense, 5)
	for i := range frames {
		frames[i] = mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	}
	frames[2] = mat.NewDense(2, 2, []float64{100, 100, 100, 100})

	out, err := TemporalMedian(frames, 3)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, []float64{1, 2, 3, 4}, out[2].RawMatrix().Data)

	_, err = TemporalMedian(frames, 2)
	assert.ErrorIs(t, err, ErrInvalidKernel)

	frames[3] = mat.NewDense(3, 2, nil)
	_, err = TemporalMedian(frames, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
