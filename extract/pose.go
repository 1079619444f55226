package extract

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CropSize is the (height, width) of pose-normalised thumbnails
type CropSize struct {
	Height int
	Width  int
}

// rotationMatrix returns the 3x3 affine matrix rotating by angle degrees (counterclockwise on
// screen) about (cx, cy), laid out the same way as OpenCV getRotationMatrix2D
func rotationMatrix(cx, cy, angle float64) *mat.Dense {
	rad := angle * math.Pi / 180.0
	alpha, beta := math.Cos(rad), math.Sin(rad)
	return mat.NewDense(3, 3, []float64{
		alpha, beta, (1-alpha)*cx - beta*cy,
		-beta, alpha, beta*cx + (1-alpha)*cy,
		0, 0, 1,
	})
}

// sampleBilinear interpolates src at (x, y). Neighbours outside src contribute zero.
func sampleBilinear(src *mat.Dense, x, y float64) float64 {
	rows, cols := src.Dims()
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	c0, r0 := int(x0), int(y0)
	total := 0.0
	for dr := 0; dr <= 1; dr++ {
		for dc := 0; dc <= 1; dc++ {
			r, c := r0+dr, c0+dc
			if r < 0 || c < 0 || r >= rows || c >= cols {
				continue
			}
			wy := 1 - fy
			if dr == 1 {
				wy = fy
			}
			wx := 1 - fx
			if dc == 1 {
				wx = fx
			}
			if w := wx * wy; w != 0 {
				total += w * src.At(r, c)
			}
		}
	}
	return total
}

// warpAffine maps src through the forward transform m into a rows x cols canvas using
// inverse mapping and bilinear sampling with a constant zero border
func warpAffine(src *mat.Dense, m *mat.Dense, rows, cols int) (*mat.Dense, error) {
	inv := mat.NewDense(3, 3, nil)
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(err, "can't invert affine transform")
	}
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := inv.At(0, 0)*float64(c) + inv.At(0, 1)*float64(r) + inv.At(0, 2)
			y := inv.At(1, 0)*float64(c) + inv.At(1, 1)*float64(r) + inv.At(1, 2)
			out.Set(r, c, sampleBilinear(src, x, y))
		}
	}
	return out, nil
}

// CropAndRotate cuts a crop-sized window centred on the feature centroid out of the zero-padded
// frame and rotates it by the negative orientation so the animal faces a canonical direction.
// The flag is false, and the thumbnail all zeros, when the centroid is missing or the window
// does not fit inside the padded frame.
func CropAndRotate(frame *mat.Dense, feature Features, size CropSize) (*mat.Dense, bool, error) {
	if size.Height <= 0 || size.Width <= 0 {
		return nil, false, errors.Errorf("crop size must be positive, got %dx%d", size.Height, size.Width)
	}
	out := mat.NewDense(size.Height, size.Width, nil)
	if frame == nil || !feature.Valid || feature.Centroid.IsMissing() || math.IsNaN(feature.Orientation) {
		return out, false, nil
	}
	rows, cols := frame.Dims()
	// Padding is (top, bottom) = width, (left, right) = height
	padRow, padCol := size.Width, size.Height
	paddedRows, paddedCols := rows+2*padRow, cols+2*padCol

	// window origin truncates toward zero, so centroids near the top or left edge round up
	startRow := int(feature.Centroid.Y-float64(size.Height/2)) + padRow
	startCol := int(feature.Centroid.X-float64(size.Width/2)) + padCol
	if startRow < 1 || startCol < 1 || startRow+size.Height >= paddedRows || startCol+size.Width >= paddedCols {
		return out, false, nil
	}

	window := mat.NewDense(size.Height, size.Width, nil)
	for r := 0; r < size.Height; r++ {
		fr := startRow + r - padRow
		if fr < 0 || fr >= rows {
			continue
		}
		for c := 0; c < size.Width; c++ {
			fc := startCol + c - padCol
			if fc < 0 || fc >= cols {
				continue
			}
			window.Set(r, c, frame.At(fr, fc))
		}
	}

	angle := -feature.Orientation * 180.0 / math.Pi
	rot := rotationMatrix(float64(size.Width/2), float64(size.Height/2), angle)
	rotated, err := warpAffine(window, rot, size.Height, size.Width)
	if err != nil {
		return out, false, err
	}
	return rotated, true, nil
}

// CropAndRotateFrames normalises every frame of the batch for one identity.
// Skipped frames get zero thumbnails.
func CropAndRotateFrames(frames []*mat.Dense, features []Features, size CropSize) ([]*mat.Dense, error) {
	if len(frames) != len(features) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d frames, %d feature records", len(frames), len(features))
	}
	out := make([]*mat.Dense, len(frames))
	for i := range frames {
		crop, _, err := CropAndRotate(frames[i], features[i], size)
		if err != nil {
			return nil, errors.Wrapf(err, "can't crop frame %d", i)
		}
		out[i] = crop
	}
	return out, nil
}

// rotate180 returns the crop turned upside down
func rotate180(src *mat.Dense) *mat.Dense {
	if src == nil {
		return nil
	}
	rows, cols := src.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(rows-1-r, cols-1-c, src.At(r, c))
		}
	}
	return out
}
