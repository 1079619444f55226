package extract

type areaContour struct {
	index int
	area  float64
}

// Same layout as container/heap, typed to avoid interface conversions.
// Ordered by larger area first, earlier discovery index on ties.

type contourHeap []*areaContour

func (h contourHeap) Len() int { return len(h) }
func (h contourHeap) Less(i, j int) bool {
	if h[i].area != h[j].area {
		return h[i].area > h[j].area
	}
	return h[i].index < h[j].index
}
func (h contourHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *contourHeap) Push(x *areaContour) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the top element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *contourHeap) Pop() *areaContour {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

func (h contourHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h contourHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}

// largestContours returns indices of the n largest-area contours, largest first.
// Returns nil when there are fewer than n contours.
func largestContours(contours []Contour, n int) []int {
	if len(contours) < n {
		return nil
	}
	h := make(contourHeap, 0, len(contours))
	for i := range contours {
		h.Push(&areaContour{index: i, area: contours[i].Area()})
	}
	out := make([]int, 0, n)
	for len(out) < n {
		out = append(out, h.Pop().index)
	}
	return out
}
