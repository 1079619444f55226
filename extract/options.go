package extract

import (
	"go.uber.org/zap"
)

// Option configures Extractor
type Option func(*Extractor)

// WithLogger sets structured logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers limits number of frames cleaned concurrently
func WithWorkers(workers int) Option {
	return func(e *Extractor) {
		e.workers = workers
	}
}

// WithFlipClassifier enables flip correction with the given classifier
func WithFlipClassifier(classifier FlipClassifier) Option {
	return func(e *Extractor) {
		e.flipClassifier = classifier
	}
}

// WithConverter replaces the configured pixel to millimetre converter
func WithConverter(conv PixelConverter) Option {
	return func(e *Extractor) {
		e.converter = conv
	}
}

// WithConfidenceSource enables confidence weighted smoothing with values read per chunk
func WithConfidenceSource(src ConfidenceSource) Option {
	return func(e *Extractor) {
		e.confidence = src
	}
}

// WithSession uses precomputed session data instead of estimating background and ROI from the source
func WithSession(session Session) Option {
	return func(e *Extractor) {
		s := session
		e.session = &s
	}
}
