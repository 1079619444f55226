package extract

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	eps = 0.00001
)

// drawEllipse sets pixels inside the rotated ellipse to height
func drawEllipse(frame *mat.Dense, cx, cy, rx, ry, theta, height float64) {
	rows, cols := frame.Dims()
	ct, st := math.Cos(theta), math.Sin(theta)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dx, dy := float64(c)-cx, float64(r)-cy
			u := dx*ct + dy*st
			v := -dx*st + dy*ct
			if (u/rx)*(u/rx)+(v/ry)*(v/ry) <= 1 {
				frame.Set(r, c, height)
			}
		}
	}
}

// fillRect sets the inclusive rectangle to value
func fillRect(frame *mat.Dense, minRow, minCol, maxRow, maxCol int, value float64) {
	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			frame.Set(r, c, value)
		}
	}
}

func maskFromRects(rows, cols int, rects ...[4]int) *Mask {
	m := NewMask(rows, cols)
	for _, rect := range rects {
		for r := rect[0]; r <= rect[2]; r++ {
			for c := rect[1]; c <= rect[3]; c++ {
				m.Set(r, c, true)
			}
		}
	}
	return m
}

// memorySource is FrameSource over frames held in memory
type memorySource struct {
	frames []*mat.Dense
	reads  [][]int
}

func (src *memorySource) NumFrames() int {
	return len(src.frames)
}

func (src *memorySource) Dims() (int, int) {
	return src.frames[0].Dims()
}

func (src *memorySource) ReadFrames(ctx context.Context, indices []int) ([]*mat.Dense, error) {
	src.reads = append(src.reads, append([]int(nil), indices...))
	out := make([]*mat.Dense, len(indices))
	for i, idx := range indices {
		out[i] = src.frames[idx]
	}
	return out, nil
}

// memorySink collects written chunks
type memorySink struct {
	indices [][]int
	results []*ChunkResult
}

func (sink *memorySink) WriteChunk(ctx context.Context, frameIndices []int, res *ChunkResult) error {
	sink.indices = append(sink.indices, frameIndices)
	sink.results = append(sink.results, res)
	return nil
}
