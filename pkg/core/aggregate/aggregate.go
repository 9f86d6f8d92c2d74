// Package aggregate implements the distribution and aggregation primitives
// every layer uses to move scalar fields between levels.
//
// All functions are pure: they never modify their inputs and always return
// freshly allocated slices.
package aggregate

import (
	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// Reduce collapses values into one scalar with op. An empty input reduces to
// 0 for every operation. OpNone is not a reduction and is rejected.
func Reduce(op linking.Operation, values []float64) (float64, error) {
	if op == linking.OpNone {
		return 0, errors.New(errors.ErrCodeInvalidSpec, "NONE is not a valid reduction")
	}
	if len(values) == 0 {
		return 0, nil
	}
	switch op {
	case linking.OpMax:
		return floats.Max(values), nil
	case linking.OpMin:
		return floats.Min(values), nil
	case linking.OpAvg:
		return floats.Sum(values) / float64(len(values)), nil
	case linking.OpSum:
		return floats.Sum(values), nil
	case linking.OpCount:
		return float64(len(values)), nil
	case linking.OpDiscard:
		return values[0], nil
	}
	return 0, errors.New(errors.ErrCodeInvalidSpec, "unknown operation %v", op)
}

// PerFaceAvg smooths a per-vertex field in two phases: the three vertex
// values of each triangle are averaged, then all triangles sharing a cell id
// are averaged. The result holds one value per triangle. A nil ids slice
// treats every triangle as its own cell.
func PerFaceAvg(values []float64, indices []int, ids []int) []float64 {
	nTri := len(indices) / 3
	perTri := make([]float64, nTri)
	for t := range nTri {
		a, b, c := indices[3*t], indices[3*t+1], indices[3*t+2]
		perTri[t] = (values[a] + values[b] + values[c]) / 3
	}
	if ids == nil {
		return perTri
	}

	sum := make(map[int]float64)
	count := make(map[int]int)
	for t := range nTri {
		sum[ids[t]] += perTri[t]
		count[ids[t]]++
	}
	out := make([]float64, nTri)
	for t := range nTri {
		out[t] = sum[ids[t]] / float64(count[ids[t]])
	}
	return out
}

// PerCoordinatesAvg scatters per-triangle values back onto the triangle
// vertices. When vertices are shared the last triangle written wins;
// vertices not referenced by any triangle stay 0.
func PerCoordinatesAvg(perTriangle []float64, totalCoords int, indices []int) []float64 {
	out := make([]float64, totalCoords)
	for t, v := range perTriangle {
		out[indices[3*t]] = v
		out[indices[3*t+1]] = v
		out[indices[3*t+2]] = v
	}
	return out
}

// Smooth is PerFaceAvg followed by PerCoordinatesAvg.
func Smooth(values []float64, indices []int, ids []int) []float64 {
	return PerCoordinatesAvg(PerFaceAvg(values, indices, ids), len(values), indices)
}

// InnerAgg groups per-coordinate values by component and reduces each group
// with op. groupCounts[i] is the number of values component i contributes at
// the start level; outCounts[i] is the number of coordinates the reduced
// scalar is broadcast over. Only start levels below OBJECTS and the end level
// OBJECTS are supported.
func InnerAgg(values []float64, groupCounts, outCounts []int, start, end linking.Level, op linking.Operation) ([]float64, error) {
	if end != linking.LevelObjects {
		return nil, errors.New(errors.ErrCodeUnsupported, "inner aggregation to %s is not supported", end)
	}
	if start == linking.LevelObjects {
		return nil, errors.New(errors.ErrCodeUnsupported, "inner aggregation from %s is not supported", start)
	}
	if op == linking.OpNone {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "NONE is not a valid inner aggregation")
	}
	if len(groupCounts) != len(outCounts) {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"inner aggregation: %d source groups but %d target groups", len(groupCounts), len(outCounts))
	}
	if total := Total(groupCounts); total != len(values) {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"inner aggregation: %d values for %d coordinates", len(values), total)
	}

	perObject := make([]float64, len(groupCounts))
	off := 0
	for i, n := range groupCounts {
		v, err := Reduce(op, values[off:off+n])
		if err != nil {
			return nil, err
		}
		perObject[i] = v
		off += n
	}
	return Broadcast(perObject, outCounts), nil
}

// Broadcast repeats perObject[i] counts[i] times.
func Broadcast(perObject []float64, counts []int) []float64 {
	out := make([]float64, 0, Total(counts))
	for i, n := range counts {
		for range n {
			out = append(out, perObject[i])
		}
	}
	return out
}

// Offsets returns the index of the first element of every group.
func Offsets(counts []int) []int {
	out := make([]int, len(counts))
	off := 0
	for i, n := range counts {
		out[i] = off
		off += n
	}
	return out
}

// Total returns the sum of counts.
func Total(counts []int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// Range returns the minimum and maximum of values whose mask entry is true.
// A nil mask includes every value. ok is false when nothing was included.
func Range(values []float64, mask []bool) (lo, hi float64, ok bool) {
	for i, v := range values {
		if mask != nil && (i >= len(mask) || !mask[i]) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, ok
}
