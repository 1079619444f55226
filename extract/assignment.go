package extract

import (
	"math"
	"sort"

	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
)

// matchScores holds per-blob distance and similarity to every identity
type matchScores struct {
	// centroid distance normalised per blob to [0, 1], lower is closer
	distance [][]float64
	// cosine of orientation difference, higher is more similar
	similarity [][]float64
}

// scoreBlobs computes normalised centroid distances and orientation similarities between the
// blobs of the current frame and the identities' last known state. Missing values never
// produce NaN: a missing distance counts as the farthest (1), a missing similarity as neutral (0).
func scoreBlobs(state *TrackState, blobs []Features) matchScores {
	n := len(state.Centroids)
	scores := matchScores{
		distance:   make([][]float64, len(blobs)),
		similarity: make([][]float64, len(blobs)),
	}
	for k, blob := range blobs {
		dist := make([]float64, n)
		sim := make([]float64, n)
		maxDist := 0.0
		for id := 0; id < n; id++ {
			last := state.Centroids[id]
			if !blob.Valid || blob.Centroid.IsMissing() || last.IsMissing() {
				dist[id] = math.NaN()
			} else {
				dist[id] = euclideanDistance(last, blob.Centroid)
				maxDist = maxFloat64(maxDist, dist[id])
			}
			s := math.Cos(state.Orientations[id] - blob.Orientation)
			if math.IsNaN(s) {
				s = 0
			}
			sim[id] = s
		}
		for id := range dist {
			switch {
			case math.IsNaN(dist[id]):
				dist[id] = 1
			case maxDist > 0:
				dist[id] /= maxDist
			default:
				dist[id] = 0
			}
		}
		scores.distance[k] = dist
		scores.similarity[k] = sim
	}
	return scores
}

// greedyNearest assigns every blob the identity with the smallest normalised distance.
// The first identity wins ties. Several blobs may claim the same identity.
func greedyNearest(scores matchScores) []int {
	assigned := make([]int, len(scores.distance))
	for k, dist := range scores.distance {
		best := 0
		for id := 1; id < len(dist); id++ {
			if dist[id] < dist[best] {
				best = id
			}
		}
		assigned[k] = best
	}
	return assigned
}

// duplicatedIDs returns identities claimed more than once, in order of first appearance
func duplicatedIDs(assigned []int) []int {
	counts := make(map[int]int, len(assigned))
	for _, id := range assigned {
		counts[id]++
	}
	seen := make(map[int]struct{}, len(assigned))
	dups := make([]int, 0)
	for _, id := range assigned {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if counts[id] > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}

// freePool returns identities nobody claimed plus the duplicated ones, ascending.
// A duplicated identity goes back to the pool so one of its culprits can keep it.
func freePool(assigned []int, nIDs int, dups []int) []int {
	claimed := make(map[int]struct{}, len(assigned))
	for _, id := range assigned {
		claimed[id] = struct{}{}
	}
	for _, id := range dups {
		delete(claimed, id)
	}
	pool := make([]int, 0)
	for id := 0; id < nIDs; id++ {
		if _, ok := claimed[id]; !ok {
			pool = append(pool, id)
		}
	}
	sort.Ints(pool)
	return pool
}

// solveMaxSimilarity assigns each row of a rows x cols similarity matrix (rows <= cols) to a
// distinct column maximising total similarity. Returns column index per row.
func solveMaxSimilarity(similarity [][]float64) ([]int, error) {
	numRows := len(similarity)
	if numRows == 0 {
		return []int{}, nil
	}
	numCols := len(similarity[0])
	if numRows > numCols {
		return nil, errors.Wrapf(ErrIdentityPoolExhausted, "%d culprits for %d free identities", numRows, numCols)
	}
	// Pad rows to make the matrix square. Similarities are shifted to be non-negative so
	// zero-valued dummy rows never outbid a real one.
	size := numCols
	padded := make([][]float64, size)
	for i := 0; i < size; i++ {
		padded[i] = make([]float64, size)
		if i < numRows {
			for j := 0; j < numCols; j++ {
				padded[i][j] = similarity[i][j] + 1.0
			}
		}
	}
	assignmentsMap := hungarian.SolveMax(padded)
	result := make([]int, numRows)
	used := make(map[int]struct{}, numRows)
	for row := 0; row < numRows; row++ {
		rowMap, ok := assignmentsMap[row]
		if !ok || len(rowMap) == 0 {
			return nil, errors.Errorf("hungarian solver left row %d unassigned", row)
		}
		col := -1
		for c := range rowMap {
			col = c
			break
		}
		if _, dup := used[col]; dup || col < 0 || col >= numCols {
			return nil, errors.Errorf("hungarian solver returned invalid column %d for row %d", col, row)
		}
		used[col] = struct{}{}
		result[row] = col
	}
	preferLowerColumns(similarity, result)
	return result, nil
}

// tieTolerance is the similarity difference under which two assignments score the same
const tieTolerance = 1e-9

// preferLowerColumns makes an optimal assignment deterministic. Among equally scored
// alternatives, a row moves to a lower free column and two rows swap columns so the lower
// row gets the lower column. The total similarity never changes.
func preferLowerColumns(similarity [][]float64, cols []int) {
	taken := make([]bool, len(similarity[0]))
	for _, c := range cols {
		taken[c] = true
	}
	for changed := true; changed; {
		changed = false
		for i := range cols {
			for c := 0; c < cols[i]; c++ {
				if !taken[c] && math.Abs(similarity[i][c]-similarity[i][cols[i]]) <= tieTolerance {
					taken[cols[i]], taken[c] = false, true
					cols[i] = c
					changed = true
					break
				}
			}
			for j := i + 1; j < len(cols); j++ {
				if cols[i] < cols[j] {
					continue
				}
				before := similarity[i][cols[i]] + similarity[j][cols[j]]
				after := similarity[i][cols[j]] + similarity[j][cols[i]]
				if math.Abs(before-after) <= tieTolerance {
					cols[i], cols[j] = cols[j], cols[i]
					changed = true
				}
			}
		}
	}
}

// assignIdentities maps every blob to an identity: greedy nearest centroid first, then
// orientation-based Hungarian repair for identities claimed by several blobs.
// The free pool shrinks after every duplicated group so the final assignment is a bijection.
func assignIdentities(state *TrackState, blobs []Features) ([]int, error) {
	scores := scoreBlobs(state, blobs)
	assigned := greedyNearest(scores)
	dups := duplicatedIDs(assigned)
	if len(dups) == 0 {
		return assigned, nil
	}
	pool := freePool(assigned, len(state.Centroids), dups)
	resolved := make([]int, len(assigned))
	copy(resolved, assigned)
	for _, dupID := range dups {
		culprits := make([]int, 0)
		for k, id := range assigned {
			if id == dupID {
				culprits = append(culprits, k)
			}
		}
		if len(culprits) > len(pool) {
			return nil, errors.Wrapf(ErrIdentityPoolExhausted, "identity %d: %d culprits, %d free", dupID, len(culprits), len(pool))
		}
		similarity := make([][]float64, len(culprits))
		for l, k := range culprits {
			row := make([]float64, len(pool))
			for m, id := range pool {
				row[m] = scores.similarity[k][id]
			}
			similarity[l] = row
		}
		cols, err := solveMaxSimilarity(similarity)
		if err != nil {
			return nil, errors.Wrapf(err, "can't resolve duplicated identity %d", dupID)
		}
		taken := make(map[int]struct{}, len(cols))
		for l, k := range culprits {
			resolved[k] = pool[cols[l]]
			taken[cols[l]] = struct{}{}
		}
		remaining := make([]int, 0, len(pool)-len(taken))
		for m, id := range pool {
			if _, ok := taken[m]; !ok {
				remaining = append(remaining, id)
			}
		}
		pool = remaining
	}
	return resolved, nil
}
