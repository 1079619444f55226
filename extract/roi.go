package extract

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ROIWeights weights the area, extent and center-distance ranks of candidate regions
type ROIWeights struct {
	Area       float64
	Extent     float64
	CenterDist float64
}

// ROIParams holds everything GetROIs needs. Structuring elements are built by the caller
// for every call, so nothing here is shared between detections.
type ROIParams struct {
	Plane PlaneParams

	DilateElement    *StructuringElement
	DilateIterations int
	ErodeElement     *StructuringElement
	ErodeIterations  int

	GradientFilter    bool
	GradientKernel    int
	GradientThreshold float64

	Weights   ROIWeights
	FillHoles bool

	// Previously claimed ROI. The candidate overlapping it the most is dropped.
	Overlap *Mask
}

// ROI is a candidate region of interest (typically an arena floor)
type ROI struct {
	Mask *Mask
	BBox BBox
	// Rank is the weighted rank score, lower is better
	Rank float64
	// Label of the connected component this ROI was grown from
	Label int
}

// ROIResult holds ranked ROIs and diagnostics
type ROIResult struct {
	ROIs  []ROI
	Plane *Plane
	// Labels is the row-major component label image of the thresholded plane distance
	Labels []int
	// Ranks holds per-component (area, extent, center distance) ranks, indexed by label-1
	Ranks [][3]int
	// Order lists component indices (label-1) best first
	Order []int
}

// rankMax ranks values ascending, ties get the largest rank of their group (1-based)
func rankMax(values []float64) []int {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	ranks := make([]int, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		for k := i; k <= j; k++ {
			ranks[idx[k]] = j + 1
		}
		i = j + 1
	}
	return ranks
}

// GetROIs fits a plane to the depth image, thresholds the distance to the plane and returns
// candidate ROIs sorted best first. Degenerate input (no plane, no surviving component) yields
// an empty list and no error; errors are reserved for invalid parameters.
func GetROIs(depth *mat.Dense, params ROIParams) (*ROIResult, error) {
	res := &ROIResult{ROIs: []ROI{}}
	if depth == nil {
		return res, nil
	}
	rows, cols := depth.Dims()

	var gradMask *Mask
	if params.GradientFilter {
		var err error
		gradMask, err = GradientMask(depth, params.GradientKernel, params.GradientThreshold)
		if err != nil {
			return nil, errors.Wrap(err, "can't compute ROI gradient mask")
		}
	}

	plane, dists := FitPlane(depth, gradMask, params.Plane)
	if plane == nil {
		return res, nil
	}
	res.Plane = plane

	// anything closer than noise tolerance to the plane is part of it
	bin := MaskFromFrame(dists, func(v float64) bool { return v < params.Plane.NoiseTolerance })
	labels, comps := LabelComponents(bin, Connectivity8)
	res.Labels = labels
	if len(comps) == 0 {
		return res, nil
	}

	centerR, centerC := float64(rows)/2, float64(cols)/2
	areas := make([]float64, len(comps))
	extents := make([]float64, len(comps))
	centerDists := make([]float64, len(comps))
	for i := range comps {
		areas[i] = float64(comps[i].Area)
		extents[i] = comps[i].Extent()
		maxDist := 0.0
		for _, idx := range comps[i].Pixels {
			r, c := float64(idx/cols), float64(idx%cols)
			maxDist = maxFloat64(maxDist, math.Hypot(r-centerR, c-centerC))
		}
		centerDists[i] = maxDist
	}

	// rank features: bigger area and extent are better, smaller distance is better
	negAreas := make([]float64, len(comps))
	negExtents := make([]float64, len(comps))
	for i := range comps {
		negAreas[i] = -areas[i]
		negExtents[i] = -extents[i]
	}
	areaRanks := rankMax(negAreas)
	extentRanks := rankMax(negExtents)
	distRanks := rankMax(centerDists)

	scores := make([]float64, len(comps))
	res.Ranks = make([][3]int, len(comps))
	for i := range comps {
		res.Ranks[i] = [3]int{areaRanks[i], extentRanks[i], distRanks[i]}
		scores[i] = (float64(areaRanks[i])*params.Weights.Area +
			float64(extentRanks[i])*params.Weights.Extent +
			float64(distRanks[i])*params.Weights.CenterDist) / 3.0
	}
	order := make([]int, len(comps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	res.Order = order

	for _, ci := range order {
		roiMask := NewMask(rows, cols)
		for _, idx := range comps[ci].Pixels {
			roiMask.Data[idx] = true
		}
		if params.DilateElement != nil && params.DilateIterations > 0 {
			roiMask = morphMask(roiMask, func(f *mat.Dense) *mat.Dense {
				return Dilate(f, params.DilateElement, params.DilateIterations)
			})
		}
		if params.ErodeElement != nil && params.ErodeIterations > 0 {
			roiMask = morphMask(roiMask, func(f *mat.Dense) *mat.Dense {
				return Erode(f, params.ErodeElement, params.ErodeIterations)
			})
		}
		if params.FillHoles {
			roiMask = FillHoles(roiMask)
		}
		box, ok := BBoxOf(roiMask)
		if !ok {
			// erosion swallowed the whole region
			continue
		}
		res.ROIs = append(res.ROIs, ROI{
			Mask:  roiMask,
			BBox:  box,
			Rank:  scores[ci],
			Label: comps[ci].Label,
		})
	}

	// remove the candidate overlapping the already claimed ROI the most
	if params.Overlap != nil && len(res.ROIs) > 0 {
		del := 0
		best := -1
		for i := range res.ROIs {
			if ov := res.ROIs[i].Mask.Overlap(params.Overlap); ov > best {
				best = ov
				del = i
			}
		}
		res.ROIs = append(res.ROIs[:del], res.ROIs[del+1:]...)
	}
	return res, nil
}
