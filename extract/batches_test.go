package extract

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

func TestBatchSequence(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {3, 4, 5, 6}, {6, 7, 8, 9}}, BatchSequence(10, 4, 1, 0))
	assert.Equal(t, [][]int{{2, 3, 4, 5}, {6, 7, 8, 9}}, BatchSequence(10, 4, 0, 2))
	assert.Equal(t, [][]int{{0, 1, 2}}, BatchSequence(3, 10, 2, 0))
	assert.Empty(t, BatchSequence(2, 10, 2, 0))
	assert.Nil(t, BatchSequence(10, 4, 4, 0))
	assert.Nil(t, BatchSequence(10, 0, 0, 0))
}

func extractorConfig() *Config {
	cfg := DefaultConfig()
	cfg.Background.Enabled = false
	cfg.ROI.Enabled = false
	cfg.Clean = CleanConfig{}
	cfg.CropSize = [2]int{12, 12}
	cfg.Chunk = ChunkConfig{Size: 4, Overlap: 1}
	return cfg
}

func arenaSession() Session {
	input := arenaInput()
	return Session{Background: input.Background, ROI: input.ROI, TrueDepth: chunkFloor}
}

func TestExtractorRun(t *testing.T) {
	frames := arenaFrames(10)
	frames[5] = NewFrame(30, 40)
	fillRect(frames[5], 0, 0, 29, 39, chunkFloor)

	extractor, err := NewExtractor(extractorConfig(), WithSession(arenaSession()), WithLogger(zap.NewNop()), WithWorkers(2))
	require.NoError(t, err)
	src := &memorySource{frames: frames}
	sink := &memorySink{}
	runStats, state, err := extractor.Run(context.Background(), src, sink)
	require.NoError(t, err)

	assert.Equal(t, RunStats{Chunks: 3, Frames: 10, InvalidFrames: 1}, runStats)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {3, 4, 5, 6}, {6, 7, 8, 9}}, src.reads)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, sink.indices)

	second := sink.results[1]
	require.Len(t, second.Valid, 3)
	assert.Equal(t, []bool{true, false, true}, second.Valid)
	require.Len(t, second.Features[0], 3)
	require.Len(t, second.Scalars[0], 3)
	require.Len(t, second.Crops[0], 3)
	require.Len(t, second.States, 3)
	// frame 4 in ROI coordinates
	assert.InDelta(t, 18.0, second.Features[0][0].Centroid.X, 0.5)
	// the shared frame 3 provides the previous sample
	assert.InDelta(t, 2.0, second.Scalars[0][0].Velocity2DPx, 0.5)

	assert.True(t, state.Initialized)
	assert.InDelta(t, 28.0, state.Centroids[0].X, 0.5)
	assert.Equal(t, sink.results[0].States[0].RunID, state.RunID)
}

func TestExtractorRunErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	extractor, err := NewExtractor(extractorConfig(), WithSession(arenaSession()))
	require.NoError(t, err)
	_, _, err = extractor.Run(ctx, &memorySource{frames: arenaFrames(5)}, &memorySink{})
	assert.ErrorIs(t, err, context.Canceled)

	frames := arenaFrames(5)
	frames[4] = NewFrame(31, 40)
	_, _, err = extractor.Run(context.Background(), &memorySource{frames: frames}, &memorySink{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, _, err = extractor.Run(context.Background(), &memorySource{frames: arenaFrames(5)}, failingSink{})
	assert.Error(t, err)

	_, err = NewExtractor(nil)
	assert.Error(t, err)
	bad := extractorConfig()
	bad.Chunk.Overlap = 4
	_, err = NewExtractor(bad)
	assert.Error(t, err)
}

type memoryConfidence struct {
	reads  [][]int
	length int
	err    error
}

func (m *memoryConfidence) ReadConfidence(ctx context.Context, indices []int) ([][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.reads = append(m.reads, append([]int(nil), indices...))
	n := len(indices)
	if m.length > 0 {
		n = m.length
	}
	conf := make([][]float64, n)
	for i := range conf {
		conf[i] = []float64{0}
	}
	return conf, nil
}

func TestExtractorRunConfidence(t *testing.T) {
	conf := &memoryConfidence{}
	extractor, err := NewExtractor(extractorConfig(), WithSession(arenaSession()), WithConfidenceSource(conf))
	require.NoError(t, err)
	sink := &memorySink{}
	_, _, err = extractor.Run(context.Background(), &memorySource{frames: arenaFrames(7)}, sink)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {3, 4, 5, 6}}, conf.reads)
	require.Len(t, sink.results, 2)

	// confidence must cover every frame of the chunk
	extractor, err = NewExtractor(extractorConfig(), WithSession(arenaSession()), WithConfidenceSource(&memoryConfidence{length: 2}))
	require.NoError(t, err)
	_, _, err = extractor.Run(context.Background(), &memorySource{frames: arenaFrames(7)}, &memorySink{})
	assert.ErrorIs(t, err, ErrConfidenceLength)

	extractor, err = NewExtractor(extractorConfig(), WithSession(arenaSession()), WithConfidenceSource(&memoryConfidence{err: errors.New("no scores")}))
	require.NoError(t, err)
	_, _, err = extractor.Run(context.Background(), &memorySource{frames: arenaFrames(7)}, &memorySink{})
	assert.Error(t, err)
}

type failingSink struct{}

func (failingSink) WriteChunk(ctx context.Context, frameIndices []int, res *ChunkResult) error {
	return errors.New("disk full")
}

func TestPrepareSession(t *testing.T) {
	frames := make([]*mat.Dense, 3)
	for i := range frames {
		frames[i] = twoPatchFrame()
	}
	cfg := extractorConfig()
	cfg.Background = BackgroundConfig{Enabled: true, FrameStride: 1, MedianScale: 3}
	cfg.ROI.Enabled = true
	cfg.ROI.NoiseTolerance = 5
	cfg.ROI.Iterations = 200
	cfg.ROI.Dilate = ElementSpec{}
	extractor, err := NewExtractor(cfg)
	require.NoError(t, err)

	session, err := extractor.PrepareSession(context.Background(), &memorySource{frames: frames})
	require.NoError(t, err)
	require.NotNil(t, session.Background)
	require.NotNil(t, session.ROI)
	// median blur rounds off the four corners of the big patch
	assert.Equal(t, 252, session.ROI.Mask.Count())
	assert.Equal(t, 700.0, session.TrueDepth)

	cfg.ROI.Index = 5
	extractor, err = NewExtractor(cfg)
	require.NoError(t, err)
	_, err = extractor.PrepareSession(context.Background(), &memorySource{frames: frames})
	assert.Error(t, err)
}

func TestSessionDepth(t *testing.T) {
	assert.Equal(t, DefaultTrueDepth, sessionDepth(Session{}))
	bg := mat.NewDense(1, 4, []float64{600, 680, 690, 700})
	assert.Equal(t, 685.0, sessionDepth(Session{Background: bg}))
	roi := &ROI{Mask: maskFromRects(1, 4, [4]int{0, 3, 0, 3})}
	assert.Equal(t, 700.0, sessionDepth(Session{Background: bg, ROI: roi}))
}
