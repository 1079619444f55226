package extract

import "github.com/pkg/errors"

var (
	// ErrIdentityPoolExhausted means a duplicated identity group had more culprits than free identities.
	// It can not happen while identity count is conserved frame to frame, so it is fatal for the chunk.
	ErrIdentityPoolExhausted = errors.New("identity pool exhausted while resolving duplicated ids")
	// ErrDimensionMismatch is returned when frames, masks or backgrounds do not share dimensions
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidKernel is returned for non-odd or non-positive kernel sizes where an odd positive one is required
	ErrInvalidKernel = errors.New("invalid kernel size")
	// ErrConfidenceLength is returned when the confidence signal does not cover every frame
	ErrConfidenceLength = errors.New("confidence length does not match number of frames")
	// ErrNoFrames is returned when an operation needs at least one frame
	ErrNoFrames = errors.New("no frames")
)
