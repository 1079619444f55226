package extract

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// FlipClassifier predicts for every pose-normalised crop whether the animal faces backwards
type FlipClassifier interface {
	PredictFlips(ctx context.Context, crops []*mat.Dense) ([]bool, error)
}

// DetectFlips asks the classifier for per-frame flip flags and optionally median-smooths them
// over an odd window. A missing classifier, a classifier error or a wrong number of predictions
// degrades to no flips with a warning.
func DetectFlips(ctx context.Context, classifier FlipClassifier, crops []*mat.Dense, smoothing int, logger *zap.Logger) []bool {
	flips := make([]bool, len(crops))
	if classifier == nil || len(crops) == 0 {
		return flips
	}
	predicted, err := classifier.PredictFlips(ctx, crops)
	if err != nil {
		logger.Warn("flip classifier failed, frames will not be flipped", zap.Error(err))
		return flips
	}
	if len(predicted) != len(crops) {
		logger.Warn("flip classifier returned wrong number of predictions, frames will not be flipped",
			zap.Int("crops", len(crops)),
			zap.Int("predictions", len(predicted)),
		)
		return flips
	}
	copy(flips, predicted)
	if smoothing <= 1 {
		return flips
	}
	if smoothing%2 == 0 {
		logger.Warn("flip smoothing kernel must be odd, predictions left unsmoothed", zap.Int("kernel", smoothing))
		return flips
	}
	series := make([]float64, len(flips))
	for i, f := range flips {
		if f {
			series[i] = 1
		}
	}
	smoothed := medfilt1D(series, smoothing)
	for i, v := range smoothed {
		flips[i] = v > 0.5
	}
	return flips
}

// FlipCrops returns crops with flagged ones rotated by 180 degrees
func FlipCrops(crops []*mat.Dense, flips []bool) []*mat.Dense {
	out := make([]*mat.Dense, len(crops))
	for i, crop := range crops {
		if i < len(flips) && flips[i] {
			out[i] = rotate180(crop)
			continue
		}
		out[i] = crop
	}
	return out
}

// FlipFeatures returns features with pi added to the orientation of flagged frames
func FlipFeatures(features []Features, flips []bool) []Features {
	out := make([]Features, len(features))
	copy(out, features)
	for i := range out {
		if i < len(flips) && flips[i] && !math.IsNaN(out[i].Orientation) {
			out[i].Orientation += math.Pi
		}
	}
	return out
}

// CorrectFlips detects flipped frames of one identity, turns their crops around and adds pi to
// their orientation
func CorrectFlips(ctx context.Context, classifier FlipClassifier, crops []*mat.Dense, features []Features, smoothing int, logger *zap.Logger) ([]bool, []*mat.Dense, []Features) {
	flips := DetectFlips(ctx, classifier, crops, smoothing, logger)
	return flips, FlipCrops(crops, flips), FlipFeatures(features, flips)
}
