package extract

import (
	"context"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultTrueDepth is the sensor depth (mm) used when neither configuration nor background provide one
const DefaultTrueDepth = 673.1

// BatchSequence splits frames [offset, nFrames) into chunks of chunkSize sharing overlap frames
// with the previous chunk. Returns nil when chunkSize is not larger than overlap.
func BatchSequence(nFrames, chunkSize, overlap, offset int) [][]int {
	if chunkSize <= 0 || overlap < 0 || chunkSize <= overlap {
		return nil
	}
	offset = maxInt(offset, 0)
	total := nFrames - offset
	batches := make([][]int, 0)
	for start := 0; start < total-overlap; start += chunkSize - overlap {
		end := minInt(start+chunkSize, total)
		batch := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, offset+i)
		}
		batches = append(batches, batch)
	}
	return batches
}

// ChunkSink receives extraction results. Frames shared with the previous chunk are already removed.
type ChunkSink interface {
	WriteChunk(ctx context.Context, frameIndices []int, res *ChunkResult) error
}

// Session holds session-level data shared read-only by every chunk
type Session struct {
	Background *mat.Dense
	ROI        *ROI
	TrueDepth  float64
}

// RunStats summarises a finished run
type RunStats struct {
	Chunks        int
	Frames        int
	InvalidFrames int
}

// Extractor processes a whole recording chunk by chunk
type Extractor struct {
	cfg            *Config
	logger         *zap.Logger
	workers        int
	flipClassifier FlipClassifier
	converter      PixelConverter
	confidence     ConfidenceSource
	session        *Session
}

// ConfidenceSource supplies per-frame confidence values (e.g. keypoint scores) for the frames of
// one chunk. Entries are returned in the order of indices.
type ConfidenceSource interface {
	ReadConfidence(ctx context.Context, indices []int) ([][]float64, error)
}

// NewExtractor creates extractor for the validated configuration
func NewExtractor(cfg *Config, opts ...Option) (*Extractor, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	e := &Extractor{
		cfg:     cfg,
		logger:  zap.NewNop(),
		workers: cfg.Clean.Workers,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// PrepareSession estimates the background, detects the ROI on it and derives the sensor depth
func (e *Extractor) PrepareSession(ctx context.Context, src FrameSource) (Session, error) {
	session := Session{TrueDepth: e.cfg.TrueDepth}
	if e.cfg.Background.Enabled {
		bg, err := EstimateBackground(ctx, src, e.cfg.BackgroundParams())
		if err != nil {
			return Session{}, errors.Wrap(err, "can't estimate background")
		}
		session.Background = bg
	}
	if e.cfg.ROI.Enabled && session.Background != nil {
		params, err := e.cfg.ROIParams()
		if err != nil {
			return Session{}, err
		}
		res, err := GetROIs(session.Background, params)
		if err != nil {
			return Session{}, errors.Wrap(err, "can't detect ROI")
		}
		if e.cfg.ROI.Index >= len(res.ROIs) {
			return Session{}, errors.Errorf("ROI %d requested, %d found", e.cfg.ROI.Index, len(res.ROIs))
		}
		roi := res.ROIs[e.cfg.ROI.Index]
		session.ROI = &roi
		e.logger.Info("ROI detected",
			zap.Int("candidates", len(res.ROIs)),
			zap.Int("area", roi.Mask.Count()),
			zap.Float64("rank", roi.Rank),
		)
	}
	if session.TrueDepth <= 0 {
		session.TrueDepth = sessionDepth(session)
	}
	return session, nil
}

// sessionDepth is the median background depth inside the ROI
func sessionDepth(session Session) float64 {
	if session.Background == nil {
		return DefaultTrueDepth
	}
	rows, cols := session.Background.Dims()
	values := make([]float64, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if session.ROI != nil && !session.ROI.Mask.At(r, c) {
				continue
			}
			values = append(values, session.Background.At(r, c))
		}
	}
	med, err := stats.Median(finite(values))
	if err != nil {
		return DefaultTrueDepth
	}
	return med
}

// trimChunk drops the first offset frames from every per-frame field of the result
func trimChunk(res *ChunkResult, offset int) *ChunkResult {
	if offset <= 0 {
		return res
	}
	offset = minInt(offset, len(res.Valid))
	out := &ChunkResult{
		Features:       make([][]Features, len(res.Features)),
		Scalars:        make([][]ScalarRecord, len(res.Scalars)),
		Crops:          make([][]*mat.Dense, len(res.Crops)),
		FilteredCrops:  make([][]*mat.Dense, len(res.FilteredCrops)),
		MaskCrops:      make([][]*mat.Dense, len(res.MaskCrops)),
		Flips:          make([][]bool, len(res.Flips)),
		Valid:          res.Valid[offset:],
		Masks:          res.Masks[offset:],
		HeightFrames:   res.HeightFrames[offset:],
		FilteredFrames: res.FilteredFrames[offset:],
		States:         res.States[offset:],
	}
	for id := range res.Features {
		out.Features[id] = res.Features[id][offset:]
		out.Scalars[id] = res.Scalars[id][offset:]
		out.Crops[id] = res.Crops[id][offset:]
		out.FilteredCrops[id] = res.FilteredCrops[id][offset:]
		out.MaskCrops[id] = res.MaskCrops[id][offset:]
		out.Flips[id] = res.Flips[id][offset:]
	}
	return out
}

// Run extracts the whole recording. Chunks are processed strictly in order and the tracker state
// is carried from one chunk into the next. With overlap, the next chunk resumes from the state
// right before the shared frames. The returned state is the one after the last frame.
// Cancellation is checked between chunks.
func (e *Extractor) Run(ctx context.Context, src FrameSource, sink ChunkSink) (RunStats, TrackState, error) {
	state := NewTrackState(e.cfg.Tracking.NumberOfMice)
	runStats := RunStats{}
	logger := e.logger.With(zap.String("run_id", state.RunID.String()))

	var session Session
	if e.session != nil {
		session = *e.session
	} else {
		var err error
		session, err = e.PrepareSession(ctx, src)
		if err != nil {
			return runStats, state, err
		}
	}
	input, err := e.cfg.ChunkInput(session)
	if err != nil {
		return runStats, state, err
	}
	input.Clean.Workers = e.workers
	input.FlipClassifier = e.flipClassifier
	if e.converter != nil {
		input.Converter = e.converter
	}
	input.Logger = logger

	rows, cols := src.Dims()
	overlap := e.cfg.Chunk.Overlap
	batches := BatchSequence(src.NumFrames(), e.cfg.Chunk.Size, overlap, e.cfg.Chunk.FirstFrame)
	logger.Info("extraction started",
		zap.Int("frames", src.NumFrames()),
		zap.Int("chunks", len(batches)),
		zap.Float64("true_depth", session.TrueDepth),
	)
	for i, indices := range batches {
		if err := ctx.Err(); err != nil {
			return runStats, state, err
		}
		frames, err := src.ReadFrames(ctx, indices)
		if err != nil {
			return runStats, state, errors.Wrapf(err, "can't read chunk %d", i)
		}
		if len(frames) != len(indices) {
			return runStats, state, errors.Errorf("source returned %d frames for %d indices", len(frames), len(indices))
		}
		for _, f := range frames {
			if f == nil {
				return runStats, state, errors.Wrapf(ErrDimensionMismatch, "nil frame in chunk %d", i)
			}
			if r, c := f.Dims(); r != rows || c != cols {
				return runStats, state, errors.Wrapf(ErrDimensionMismatch, "chunk %d frame is %dx%d, source reports %dx%d", i, r, c, rows, cols)
			}
		}

		chunkInput := input
		if e.confidence != nil {
			conf, err := e.confidence.ReadConfidence(ctx, indices)
			if err != nil {
				return runStats, state, errors.Wrapf(err, "can't read confidence for chunk %d", i)
			}
			chunkInput.Confidence = conf
		}
		res, next, err := ExtractChunk(ctx, frames, chunkInput, state)
		if err != nil {
			return runStats, state, errors.Wrapf(err, "chunk %d", i)
		}
		offset := 0
		if i > 0 {
			offset = overlap
		}
		trimmed := trimChunk(res, offset)
		if err := sink.WriteChunk(ctx, indices[minInt(offset, len(indices)):], trimmed); err != nil {
			return runStats, state, errors.Wrapf(err, "can't write chunk %d", i)
		}

		state = next
		if overlap > 0 && i < len(batches)-1 && len(res.States) > overlap {
			state = res.States[len(res.States)-overlap-1]
		}
		runStats.Chunks++
		runStats.Frames += len(trimmed.Valid)
		runStats.InvalidFrames += trimmed.InvalidFrames()
		logger.Debug("chunk written",
			zap.Int("chunk", i),
			zap.Int("frames", len(trimmed.Valid)),
			zap.Int("invalid_frames", trimmed.InvalidFrames()),
		)
	}
	logger.Info("extraction finished",
		zap.Int("chunks", runStats.Chunks),
		zap.Int("frames", runStats.Frames),
		zap.Int("invalid_frames", runStats.InvalidFrames),
	)
	return runStats, state, nil
}
