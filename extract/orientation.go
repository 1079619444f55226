package extract

import "math"

// unwrap removes jumps larger than pi between consecutive values, ignoring NaN entries.
// A jump of exactly -pi is kept as +pi when the raw difference is positive.
func unwrap(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	prevRaw, correction := math.NaN(), 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !math.IsNaN(prevRaw) {
			d := v - prevRaw
			dd := pyMod(d+math.Pi, 2*math.Pi) - math.Pi
			if dd == -math.Pi && d > 0 {
				dd = math.Pi
			}
			if math.Abs(d) >= math.Pi {
				correction += dd - d
			}
		}
		prevRaw = v
		out[i] = v + correction
	}
	return out
}

// pyMod is modulo taking the sign of the divisor
func pyMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// UnwrapOrientation unwraps the half-angle moment orientation of one identity as unwrap(2*theta)/2,
// removing +-pi/2 jumps. Missing orientations stay missing.
func UnwrapOrientation(orientations []float64) []float64 {
	doubled := make([]float64, len(orientations))
	for i, v := range orientations {
		doubled[i] = 2 * v
	}
	out := unwrap(doubled)
	for i := range out {
		out[i] /= 2
	}
	return out
}
