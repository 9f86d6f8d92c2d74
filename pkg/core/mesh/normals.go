package mesh

import "gonum.org/v1/gonum/spatial/r3"

func vertex(coords []float64, i int) r3.Vec {
	return r3.Vec{X: coords[3*i], Y: coords[3*i+1], Z: coords[3*i+2]}
}

// computeNormals returns unit vertex normals. Each triangle adds its
// unnormalized face cross product (so larger faces weigh more) to its three
// vertices; the sums are normalized at the end. Vertices whose sum is zero
// (isolated or only touching degenerate faces) keep the zero vector.
func computeNormals(coords []float64, vTable []int) []float64 {
	n := len(coords) / 3
	acc := make([]r3.Vec, n)
	for t := 0; t+2 < len(vTable); t += 3 {
		a, b, c := vTable[t], vTable[t+1], vTable[t+2]
		pa, pb, pc := vertex(coords, a), vertex(coords, b), vertex(coords, c)
		face := r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa))
		acc[a] = r3.Add(acc[a], face)
		acc[b] = r3.Add(acc[b], face)
		acc[c] = r3.Add(acc[c], face)
	}

	out := make([]float64, 3*n)
	for i, v := range acc {
		if r3.Norm(v) == 0 {
			continue
		}
		u := r3.Unit(v)
		out[3*i], out[3*i+1], out[3*i+2] = u.X, u.Y, u.Z
	}
	return out
}
