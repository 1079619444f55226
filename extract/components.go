package extract

// Connectivity is for pixel adjacency used by component labeling
type Connectivity uint16

const (
	// Connectivity4 links horizontal and vertical neighbours
	Connectivity4 Connectivity = 4
	// Connectivity8 also links diagonal neighbours
	Connectivity8 Connectivity = 8
)

var (
	neighbours4 = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	neighbours8 = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

// Component holds statistics of a single connected component.
type Component struct {
	Label int
	Area  int
	BBox  BBox
	// Pixels are row-major indices into the labeled image
	Pixels []int
}

// Extent returns the fraction of the bounding box covered by the component
func (comp *Component) Extent() float64 {
	boxArea := comp.BBox.Area()
	if boxArea <= 0 {
		return 0
	}
	return float64(comp.Area) / float64(boxArea)
}

// LabelComponents labels the true pixels of the mask. Labels start at 1 and follow raster
// order of each component's first pixel; background is 0.
func LabelComponents(m *Mask, conn Connectivity) ([]int, []Component) {
	labels := make([]int, len(m.Data))
	dirs := neighbours8
	if conn == Connectivity4 {
		dirs = neighbours4
	}
	components := make([]Component, 0)
	label := 1
	queue := make([]int, 0)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			start := r*m.Cols + c
			if !m.Data[start] || labels[start] != 0 {
				continue
			}
			comp := Component{
				Label: label,
				BBox:  BBox{MinRow: r, MinCol: c, MaxRow: r, MaxCol: c},
			}
			labels[start] = label
			queue = append(queue[:0], start)
			for len(queue) > 0 {
				idx := queue[0]
				queue = queue[1:]
				cr, cc := idx/m.Cols, idx%m.Cols
				comp.Area++
				comp.Pixels = append(comp.Pixels, idx)
				comp.BBox.MinRow = minInt(comp.BBox.MinRow, cr)
				comp.BBox.MinCol = minInt(comp.BBox.MinCol, cc)
				comp.BBox.MaxRow = maxInt(comp.BBox.MaxRow, cr)
				comp.BBox.MaxCol = maxInt(comp.BBox.MaxCol, cc)
				for _, d := range dirs {
					nr, nc := cr+d[0], cc+d[1]
					if nr < 0 || nc < 0 || nr >= m.Rows || nc >= m.Cols {
						continue
					}
					nidx := nr*m.Cols + nc
					if m.Data[nidx] && labels[nidx] == 0 {
						labels[nidx] = label
						queue = append(queue, nidx)
					}
				}
			}
			components = append(components, comp)
			label++
		}
	}
	return labels, components
}

// LargestComponent returns a mask of the largest 4-connected component (first one on ties).
// An empty mask yields an empty result.
func LargestComponent(m *Mask) *Mask {
	out := NewMask(m.Rows, m.Cols)
	_, comps := LabelComponents(m, Connectivity4)
	best := -1
	for i := range comps {
		if best < 0 || comps[i].Area > comps[best].Area {
			best = i
		}
	}
	if best < 0 {
		return out
	}
	for _, idx := range comps[best].Pixels {
		out.Data[idx] = true
	}
	return out
}
