package extract

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ElementSpec describes a structuring element. A zero width or height disables the element.
type ElementSpec struct {
	// One of "rect", "ellipse", "cross"
	Shape  string `yaml:"shape"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Build creates a new structuring element. Returns nil for a disabled spec.
func (spec ElementSpec) Build() (*StructuringElement, error) {
	if spec.Width == 0 || spec.Height == 0 {
		return nil, nil
	}
	var shape ElementShape
	switch strings.ToLower(spec.Shape) {
	case "rect", "rectangle":
		shape = ElementRect
	case "ellipse", "":
		shape = ElementEllipse
	case "cross":
		shape = ElementCross
	default:
		return nil, errors.Errorf("unknown structuring element shape '%s'", spec.Shape)
	}
	return NewStructuringElement(shape, spec.Width, spec.Height)
}

// BackgroundConfig configures BackgroundEstimator
type BackgroundConfig struct {
	Enabled     bool `yaml:"enabled"`
	FrameStride int  `yaml:"frame_stride"`
	MedianScale int  `yaml:"median_scale"`
}

// ROIConfig configures ROIDetector
type ROIConfig struct {
	Enabled bool `yaml:"enabled"`
	// Which ranked ROI to extract from
	Index             int         `yaml:"index"`
	DepthRange        [2]float64  `yaml:"depth_range"`
	NoiseTolerance    float64     `yaml:"noise_tolerance"`
	Iterations        int         `yaml:"iterations"`
	InlierRatio       float64     `yaml:"inlier_ratio"`
	Seed              int64       `yaml:"seed"`
	Dilate            ElementSpec `yaml:"dilate"`
	DilateIterations  int         `yaml:"dilate_iterations"`
	Erode             ElementSpec `yaml:"erode"`
	ErodeIterations   int         `yaml:"erode_iterations"`
	GradientFilter    bool        `yaml:"gradient_filter"`
	GradientKernel    int         `yaml:"gradient_kernel"`
	GradientThreshold float64     `yaml:"gradient_threshold"`
	// (area, extent, center distance)
	Weights   [3]float64 `yaml:"weights"`
	FillHoles bool       `yaml:"fill_holes"`
}

// CleanConfig configures FramePreprocessor
type CleanConfig struct {
	Min             ElementSpec `yaml:"min"`
	MinIterations   int         `yaml:"min_iterations"`
	SpatialKernels  []int       `yaml:"spatial_kernels"`
	Tail            ElementSpec `yaml:"tail"`
	TailIterations  int         `yaml:"tail_iterations"`
	TemporalKernels []int       `yaml:"temporal_kernels"`
	Workers         int         `yaml:"workers"`
}

// TrackingConfig configures BlobTracker
type TrackingConfig struct {
	NumberOfMice  int     `yaml:"number_of_mice"`
	UseCC         bool    `yaml:"use_cc"`
	MaskThreshold float64 `yaml:"mask_threshold"`
}

// ChunkConfig configures batch processing
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
	// Index of the first frame to extract
	FirstFrame int `yaml:"first_frame"`
}

// ConverterConfig configures the default pixel to millimetre converter
type ConverterConfig struct {
	Resolution  [2]int     `yaml:"resolution"`
	FieldOfView [2]float64 `yaml:"field_of_view"`
}

// Config is the full extraction configuration
type Config struct {
	Background BackgroundConfig `yaml:"background"`
	ROI        ROIConfig        `yaml:"roi"`
	// Height range (mm above background) kept as animal
	MinHeight float64        `yaml:"min_height"`
	MaxHeight float64        `yaml:"max_height"`
	Clean     CleanConfig    `yaml:"clean"`
	Tracking  TrackingConfig `yaml:"tracking"`
	Hampel    HampelParams   `yaml:"hampel"`
	Smoothing SmoothParams   `yaml:"smoothing"`
	// (height, width) of pose-normalised crops
	CropSize      [2]int `yaml:"crop_size"`
	FlipSmoothing int    `yaml:"flip_smoothing"`
	// Sensor depth in mm. Zero means the median background depth inside the ROI.
	TrueDepth float64         `yaml:"true_depth"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Converter ConverterConfig `yaml:"converter"`
}

// DefaultConfig returns a new configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Background: BackgroundConfig{
			Enabled:     true,
			FrameStride: 500,
			MedianScale: 5,
		},
		ROI: ROIConfig{
			Enabled:           true,
			Index:             0,
			DepthRange:        [2]float64{650, 750},
			NoiseTolerance:    30,
			Iterations:        1000,
			InlierRatio:       0.1,
			Seed:              1,
			Dilate:            ElementSpec{Shape: "ellipse", Width: 10, Height: 10},
			DilateIterations:  1,
			GradientKernel:    7,
			GradientThreshold: 3000,
			Weights:           [3]float64{1, 0.1, 1},
			FillHoles:         true,
		},
		MinHeight: 10,
		MaxHeight: 100,
		Clean: CleanConfig{
			SpatialKernels: []int{3},
			Tail:           ElementSpec{Shape: "ellipse", Width: 9, Height: 9},
			TailIterations: 1,
		},
		Tracking: TrackingConfig{
			NumberOfMice:  1,
			MaskThreshold: -30,
		},
		Hampel: HampelParams{
			CentroidSigma: 3,
			AngleSigma:    3,
		},
		Smoothing: SmoothParams{
			Low:  -300,
			High: -125,
		},
		CropSize: [2]int{80, 80},
		Chunk: ChunkConfig{
			Size: 1000,
		},
		Converter: ConverterConfig{
			Resolution:  [2]int{512, 424},
			FieldOfView: [2]float64{70.6, 60},
		},
	}
}

// ParseConfig decodes YAML on top of the defaults. Keys missing in the document keep default values.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "can't decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadConfig reads and parses YAML configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read config '%s'", path)
	}
	return ParseConfig(data)
}

func checkOddKernels(name string, kernels []int) error {
	if !allPositive(kernels) {
		return nil
	}
	for _, k := range kernels {
		if k%2 == 0 {
			return errors.Wrapf(ErrInvalidKernel, "%s kernel %d must be odd", name, k)
		}
	}
	return nil
}

// Validate checks the configuration for values no stage can work with
func (cfg *Config) Validate() error {
	if cfg.Tracking.NumberOfMice < 1 {
		return errors.Errorf("number_of_mice must be positive, got %d", cfg.Tracking.NumberOfMice)
	}
	if cfg.MinHeight >= cfg.MaxHeight {
		return errors.Errorf("min_height %v must be below max_height %v", cfg.MinHeight, cfg.MaxHeight)
	}
	if err := checkOddKernels("spatial", cfg.Clean.SpatialKernels); err != nil {
		return err
	}
	if err := checkOddKernels("temporal", cfg.Clean.TemporalKernels); err != nil {
		return err
	}
	if cfg.Background.Enabled && (cfg.Background.MedianScale <= 0 || cfg.Background.MedianScale%2 == 0) {
		return errors.Wrapf(ErrInvalidKernel, "background median scale %d must be odd and positive", cfg.Background.MedianScale)
	}
	if cfg.ROI.GradientFilter && (cfg.ROI.GradientKernel <= 0 || cfg.ROI.GradientKernel%2 == 0) {
		return errors.Wrapf(ErrInvalidKernel, "gradient kernel %d must be odd and positive", cfg.ROI.GradientKernel)
	}
	if cfg.ROI.Enabled && cfg.ROI.DepthRange[0] >= cfg.ROI.DepthRange[1] {
		return errors.Errorf("roi depth range %v is empty", cfg.ROI.DepthRange)
	}
	if cfg.ROI.Index < 0 {
		return errors.Errorf("roi index must not be negative, got %d", cfg.ROI.Index)
	}
	if cfg.CropSize[0] <= 0 || cfg.CropSize[1] <= 0 {
		return errors.Errorf("crop size must be positive, got %v", cfg.CropSize)
	}
	if cfg.Chunk.Size <= 0 || cfg.Chunk.Overlap < 0 || cfg.Chunk.Overlap >= cfg.Chunk.Size {
		return errors.Errorf("chunk size %d and overlap %d must satisfy 0 <= overlap < size", cfg.Chunk.Size, cfg.Chunk.Overlap)
	}
	if cfg.Chunk.FirstFrame < 0 {
		return errors.Errorf("first frame must not be negative, got %d", cfg.Chunk.FirstFrame)
	}
	if cfg.FlipSmoothing < 0 || (cfg.FlipSmoothing > 1 && cfg.FlipSmoothing%2 == 0) {
		return errors.Wrapf(ErrInvalidKernel, "flip smoothing %d must be odd", cfg.FlipSmoothing)
	}
	for _, spec := range []ElementSpec{cfg.ROI.Dilate, cfg.ROI.Erode, cfg.Clean.Min, cfg.Clean.Tail} {
		if _, err := spec.Build(); err != nil {
			return err
		}
	}
	return nil
}

// ROIParams builds ROIDetector parameters with freshly created structuring elements
func (cfg *Config) ROIParams() (ROIParams, error) {
	dilate, err := cfg.ROI.Dilate.Build()
	if err != nil {
		return ROIParams{}, errors.Wrap(err, "dilate element")
	}
	erode, err := cfg.ROI.Erode.Build()
	if err != nil {
		return ROIParams{}, errors.Wrap(err, "erode element")
	}
	return ROIParams{
		Plane: PlaneParams{
			DepthMin:       cfg.ROI.DepthRange[0],
			DepthMax:       cfg.ROI.DepthRange[1],
			Iterations:     cfg.ROI.Iterations,
			NoiseTolerance: cfg.ROI.NoiseTolerance,
			InlierRatio:    cfg.ROI.InlierRatio,
			Seed:           cfg.ROI.Seed,
		},
		DilateElement:     dilate,
		DilateIterations:  cfg.ROI.DilateIterations,
		ErodeElement:      erode,
		ErodeIterations:   cfg.ROI.ErodeIterations,
		GradientFilter:    cfg.ROI.GradientFilter,
		GradientKernel:    cfg.ROI.GradientKernel,
		GradientThreshold: cfg.ROI.GradientThreshold,
		Weights: ROIWeights{
			Area:       cfg.ROI.Weights[0],
			Extent:     cfg.ROI.Weights[1],
			CenterDist: cfg.ROI.Weights[2],
		},
		FillHoles: cfg.ROI.FillHoles,
	}, nil
}

// BackgroundParams builds BackgroundEstimator parameters
func (cfg *Config) BackgroundParams() BackgroundParams {
	return BackgroundParams{
		FrameStride: cfg.Background.FrameStride,
		MedianScale: cfg.Background.MedianScale,
	}
}

// CleanParams builds FramePreprocessor parameters with freshly created structuring elements
func (cfg *Config) CleanParams() (CleanParams, error) {
	minEl, err := cfg.Clean.Min.Build()
	if err != nil {
		return CleanParams{}, errors.Wrap(err, "min element")
	}
	tailEl, err := cfg.Clean.Tail.Build()
	if err != nil {
		return CleanParams{}, errors.Wrap(err, "tail element")
	}
	params := CleanParams{
		MinElement:     minEl,
		MinIterations:  cfg.Clean.MinIterations,
		TailElement:    tailEl,
		TailIterations: cfg.Clean.TailIterations,
		Workers:        cfg.Clean.Workers,
	}
	params.SpatialKernels = append([]int(nil), cfg.Clean.SpatialKernels...)
	params.TemporalKernels = append([]int(nil), cfg.Clean.TemporalKernels...)
	return params, nil
}

// TrackParams builds BlobTracker parameters. Foreground is everything above MinHeight.
func (cfg *Config) TrackParams() TrackParams {
	return TrackParams{
		FrameThreshold: cfg.MinHeight,
		UseCC:          cfg.Tracking.UseCC,
		MaskThreshold:  cfg.Tracking.MaskThreshold,
		NumberOfMice:   cfg.Tracking.NumberOfMice,
	}
}

// BuildConverter builds the configured pixel to millimetre converter
func (cfg *Config) BuildConverter() KinectConverter {
	return KinectConverter{
		Resolution:  cfg.Converter.Resolution,
		FieldOfView: cfg.Converter.FieldOfView,
	}
}

// ChunkInput builds the per-chunk pipeline input for the given session data
func (cfg *Config) ChunkInput(session Session) (ChunkInput, error) {
	clean, err := cfg.CleanParams()
	if err != nil {
		return ChunkInput{}, err
	}
	return ChunkInput{
		Background: session.Background,
		ROI:        session.ROI,
		MinHeight:  cfg.MinHeight,
		MaxHeight:  cfg.MaxHeight,
		Clean:      clean,
		Track:      cfg.TrackParams(),
		Hampel:     cfg.Hampel,
		Smooth:     cfg.Smoothing,
		CropSize: CropSize{
			Height: cfg.CropSize[0],
			Width:  cfg.CropSize[1],
		},
		FlipSmoothing: cfg.FlipSmoothing,
		Scalars: ScalarParams{
			MinHeight: cfg.MinHeight,
			MaxHeight: cfg.MaxHeight,
			TrueDepth: session.TrueDepth,
		},
		Converter: cfg.BuildConverter(),
	}, nil
}
