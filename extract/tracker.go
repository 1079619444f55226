package extract

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// TrackState is the last known centroid and orientation of every identity.
// It is returned by every tracking call and must be passed into the next one.
type TrackState struct {
	// Identifier of the tracking run, shared by all chunks of one session
	RunID uuid.UUID
	// False until the first valid frame of the run was seen
	Initialized bool
	// Last known centroid per identity
	Centroids []Point
	// Last known orientation per identity, radians
	Orientations []float64
}

// NewTrackState creates state for a fresh tracking run of numberOfMice identities
func NewTrackState(numberOfMice int) TrackState {
	state := TrackState{
		RunID:        uuid.New(),
		Centroids:    make([]Point, numberOfMice),
		Orientations: make([]float64, numberOfMice),
	}
	for i := range state.Centroids {
		state.Centroids[i] = MissingPoint()
		state.Orientations[i] = math.NaN()
	}
	return state
}

// Clone returns a deep copy of the state
func (state TrackState) Clone() TrackState {
	out := TrackState{
		RunID:        state.RunID,
		Initialized:  state.Initialized,
		Centroids:    make([]Point, len(state.Centroids)),
		Orientations: make([]float64, len(state.Orientations)),
	}
	copy(out.Centroids, state.Centroids)
	copy(out.Orientations, state.Orientations)
	return out
}

// FrameFeatures are the features of every identity in one frame.
// When Valid is false no identity was written and every entry of Mice is missing.
type FrameFeatures struct {
	Valid bool
	// Indexed by identity
	Mice []Features
}

func missingFrame(numberOfMice int) FrameFeatures {
	ff := FrameFeatures{
		Valid: false,
		Mice:  make([]Features, numberOfMice),
	}
	for i := range ff.Mice {
		ff.Mice[i] = MissingFeatures()
	}
	return ff
}

// TrackParams configures BlobTracker
type TrackParams struct {
	// Heights above this value are foreground
	FrameThreshold float64
	// Intersect foreground with the largest 4-connected component of frame > MaskThreshold
	UseCC bool
	// Threshold applied to the coarse component mask and to external masks
	MaskThreshold float64
	// Optional external masks, one per frame. Foreground is intersected with mask > MaskThreshold.
	Masks []*mat.Dense
	// Number of identities to track
	NumberOfMice int
}

// TrackResult holds per-frame tracking output
type TrackResult struct {
	Frames []FrameFeatures
	// Binary mask every frame was tracked on
	Masks []*Mask
	// State after every frame, used to resume tracking from inside the batch
	States []TrackState
}

// foregroundMask builds the binary mask contours are extracted from
func foregroundMask(frame *mat.Dense, external *mat.Dense, params TrackParams) (*Mask, error) {
	fg := MaskFromFrame(frame, func(v float64) bool { return v > params.FrameThreshold })
	var err error
	if params.UseCC {
		coarse := MaskFromFrame(frame, func(v float64) bool { return v > params.MaskThreshold })
		fg, err = fg.And(LargestComponent(coarse))
		if err != nil {
			return nil, err
		}
	}
	if external != nil {
		ext := MaskFromFrame(external, func(v float64) bool { return v > params.MaskThreshold })
		fg, err = fg.And(ext)
		if err != nil {
			return nil, errors.Wrap(err, "external mask")
		}
	}
	return fg, nil
}

// selectBlobs returns features of the numberOfMice largest contours ordered by discovery.
// The flag is false when the mask holds fewer contours than required.
func selectBlobs(mask *Mask, numberOfMice int) ([]Features, bool) {
	contours := FindContours(mask)
	selected := largestContours(contours, numberOfMice)
	if selected == nil {
		return nil, false
	}
	sort.Ints(selected)
	blobs := make([]Features, len(selected))
	for k, idx := range selected {
		blobs[k] = MomentFeatures(ContourMoments(&contours[idx]))
	}
	return blobs, true
}

// TrackFrames runs BlobTracker over a batch of preprocessed frames.
// The given state is not modified, the updated state is returned.
func TrackFrames(frames []*mat.Dense, params TrackParams, state TrackState) (TrackResult, TrackState, error) {
	if params.NumberOfMice < 1 {
		return TrackResult{}, state, errors.Errorf("number of mice must be positive, got %d", params.NumberOfMice)
	}
	if len(state.Centroids) != params.NumberOfMice || len(state.Orientations) != params.NumberOfMice {
		return TrackResult{}, state, errors.Wrapf(ErrDimensionMismatch, "track state holds %d identities, expected %d", len(state.Centroids), params.NumberOfMice)
	}
	if params.Masks != nil && len(params.Masks) != len(frames) {
		return TrackResult{}, state, errors.Wrapf(ErrDimensionMismatch, "%d external masks for %d frames", len(params.Masks), len(frames))
	}
	next := state.Clone()
	result := TrackResult{
		Frames: make([]FrameFeatures, len(frames)),
		Masks:  make([]*Mask, len(frames)),
		States: make([]TrackState, len(frames)),
	}
	for i, frame := range frames {
		result.Frames[i] = missingFrame(params.NumberOfMice)
		var external *mat.Dense
		if params.Masks != nil {
			external = params.Masks[i]
		}
		fg, err := foregroundMask(frame, external, params)
		if err != nil {
			return TrackResult{}, state, errors.Wrapf(err, "can't build foreground of frame %d", i)
		}
		result.Masks[i] = fg

		blobs, ok := selectBlobs(fg, params.NumberOfMice)
		if !ok {
			result.States[i] = next.Clone()
			continue
		}

		assigned := make([]int, len(blobs))
		for k := range assigned {
			assigned[k] = k
		}
		if next.Initialized && params.NumberOfMice > 1 {
			assigned, err = assignIdentities(&next, blobs)
			if err != nil {
				return TrackResult{}, state, errors.Wrapf(err, "can't assign identities in frame %d", i)
			}
		}
		for k, id := range assigned {
			next.Centroids[id] = blobs[k].Centroid
			next.Orientations[id] = blobs[k].Orientation
			result.Frames[i].Mice[id] = blobs[k]
		}
		result.Frames[i].Valid = true
		next.Initialized = true
		result.States[i] = next.Clone()
	}
	return result, next, nil
}
