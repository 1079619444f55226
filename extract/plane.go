package extract

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// minPlanePoints is the least number of in-range samples a plane fit accepts
const minPlanePoints = 10

// Plane defines a surface Normal.X*col + Normal.Y*row + Normal.Z*depth + D = 0 with a unit normal.
type Plane struct {
	Normal r3.Vector
	D      float64
}

// Distance returns absolute distance from the point to the plane
func (p *Plane) Distance(pt r3.Vector) float64 {
	return math.Abs(p.Normal.Dot(pt) + p.D)
}

// PlaneParams holds RANSAC settings.
type PlaneParams struct {
	// Samples outside (DepthMin, DepthMax) are not used to fit the plane
	DepthMin float64
	DepthMax float64
	// Number of RANSAC iterations
	Iterations int
	// Maximum distance for a sample to count as an inlier
	NoiseTolerance float64
	// Minimum fraction of samples that must be inliers for a candidate plane
	InlierRatio float64
	// Seed of the random generator, fixed so fits are reproducible
	Seed int64
}

// planeFromPoints builds the plane through three points. The flag is false for collinear points.
func planeFromPoints(p1, p2, p3 r3.Vector) (Plane, bool) {
	// get 2 vectors that are going to define the plane
	v1 := p2.Sub(p1)
	v2 := p3.Sub(p1)
	cross := v1.Cross(v2)
	if cross.Norm() < 1e-12 {
		return Plane{}, false
	}
	normal := cross.Normalize()
	return Plane{Normal: normal, D: -normal.Dot(p1)}, true
}

// refinePlane fits a least-squares plane through the points using the eigenvector of the
// smallest eigenvalue of their covariance
func refinePlane(pts []r3.Vector) (Plane, bool) {
	if len(pts) < 3 {
		return Plane{}, false
	}
	var mean r3.Vector
	for _, pt := range pts {
		mean = mean.Add(pt)
	}
	mean = mean.Mul(1.0 / float64(len(pts)))
	var cxx, cxy, cxz, cyy, cyz, czz float64
	for _, pt := range pts {
		d := pt.Sub(mean)
		cxx += d.X * d.X
		cxy += d.X * d.Y
		cxz += d.X * d.Z
		cyy += d.Y * d.Y
		cyz += d.Y * d.Z
		czz += d.Z * d.Z
	}
	cov := mat.NewSymDense(3, []float64{
		cxx, cxy, cxz,
		cxy, cyy, cyz,
		cxz, cyz, czz,
	})
	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		return Plane{}, false
	}
	var vectors mat.Dense
	es.VectorsTo(&vectors)
	normal := r3.Vector{X: vectors.At(0, 0), Y: vectors.At(1, 0), Z: vectors.At(2, 0)}
	if normal.Norm() < 1e-12 {
		return Plane{}, false
	}
	normal = normal.Normalize()
	return Plane{Normal: normal, D: -normal.Dot(mean)}, true
}

// FitPlane fits a plane to the depth samples with RANSAC and returns it together with the
// distance of every pixel to the plane. Pixels excluded by the mask get +Inf distance.
// Returns a nil plane when there are too few usable samples or no candidate passes the inlier ratio.
func FitPlane(depth *mat.Dense, mask *Mask, params PlaneParams) (*Plane, *mat.Dense) {
	rows, cols := depth.Dims()
	pts := make([]r3.Vector, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := depth.At(r, c)
			if !(v > params.DepthMin && v < params.DepthMax) {
				continue
			}
			if mask != nil && !mask.At(r, c) {
				continue
			}
			pts = append(pts, r3.Vector{X: float64(c), Y: float64(r), Z: v})
		}
	}
	if len(pts) <= minPlanePoints {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(params.Seed))
	nPoints := len(pts)
	bestDist := math.Inf(1)
	bestInliers := 0
	var best *Plane
	for i := 0; i < params.Iterations; i++ {
		candidate, ok := planeFromPoints(pts[rng.Intn(nPoints)], pts[rng.Intn(nPoints)], pts[rng.Intn(nPoints)])
		if !ok {
			continue
		}
		inliers := 0
		sumDist := 0.0
		for _, pt := range pts {
			dist := candidate.Distance(pt)
			sumDist += dist
			if dist < params.NoiseTolerance {
				inliers++
			}
		}
		meanDist := sumDist / float64(nPoints)
		if float64(inliers)/float64(nPoints) > params.InlierRatio && inliers > bestInliers && meanDist < bestDist {
			bestDist = meanDist
			bestInliers = inliers
			plane := candidate
			best = &plane
		}
	}
	if best == nil {
		return nil, nil
	}

	inlierPts := make([]r3.Vector, 0, bestInliers)
	for _, pt := range pts {
		if best.Distance(pt) < params.NoiseTolerance {
			inlierPts = append(inlierPts, pt)
		}
	}
	if refined, ok := refinePlane(inlierPts); ok {
		best = &refined
	}

	dists := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := depth.At(r, c)
			if math.IsNaN(v) || (mask != nil && !mask.At(r, c)) {
				dists.Set(r, c, math.Inf(1))
				continue
			}
			dists.Set(r, c, best.Distance(r3.Vector{X: float64(c), Y: float64(r), Z: v}))
		}
	}
	return best, dists
}
