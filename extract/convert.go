package extract

import "math"

// PixelConverter converts pixel coordinates to millimetres at the given sensor depth
type PixelConverter interface {
	PxToMm(x, y, trueDepth float64) (float64, float64)
}

// KinectConverter is a pinhole-style converter parameterised by sensor resolution and
// field of view
type KinectConverter struct {
	// (width, height) in pixels
	Resolution [2]int
	// (horizontal, vertical) field of view in degrees
	FieldOfView [2]float64
}

// NewKinectConverterDefault returns converter for a 512x424 sensor with 70.6x60 degrees field of view
func NewKinectConverterDefault() KinectConverter {
	return KinectConverter{
		Resolution:  [2]int{512, 424},
		FieldOfView: [2]float64{70.6, 60},
	}
}

// PxToMm implements PixelConverter
func (conv KinectConverter) PxToMm(x, y, trueDepth float64) (float64, float64) {
	cx := float64(conv.Resolution[0] / 2)
	cy := float64(conv.Resolution[1] / 2)
	fw := float64(conv.Resolution[0]) / (2 * degToRad(conv.FieldOfView[0]/2))
	fh := float64(conv.Resolution[1]) / (2 * degToRad(conv.FieldOfView[1]/2))
	return trueDepth * (x - cx) / fw, trueDepth * (y - cy) / fh
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
