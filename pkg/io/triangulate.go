package io

import "github.com/paulmach/orb"

// triangulateRing splits a simple polygon ring (without the closing point)
// into triangles by ear clipping. Indices address ring and every triangle
// winds the same way as the ring, so roofs stay consistent with the walls.
// Holes are not supported.
func triangulateRing(ring orb.Ring) []int {
	n := len(ring)
	if n < 3 {
		return nil
	}

	// Clip on a counter-clockwise copy of the index order.
	ccw := closed(ring).Orientation() != orb.CW
	idx := make([]int, n)
	for i := range idx {
		if ccw {
			idx[i] = i
		} else {
			idx[i] = n - 1 - i
		}
	}

	tris := make([]int, 0, 3*(n-2))
	emit := func(a, b, c int) {
		if ccw {
			tris = append(tris, a, b, c)
		} else {
			tris = append(tris, c, b, a)
		}
	}

	for len(idx) > 3 {
		ear := findEar(ring, idx)
		if ear < 0 {
			// Self-intersecting or fully degenerate remainder: fan it.
			for i := 1; i+1 < len(idx); i++ {
				emit(idx[0], idx[i], idx[i+1])
			}
			return tris
		}
		m := len(idx)
		prev, next := idx[(ear+m-1)%m], idx[(ear+1)%m]
		if cross(ring[prev], ring[idx[ear]], ring[next]) != 0 {
			emit(prev, idx[ear], next)
		}
		idx = append(idx[:ear], idx[ear+1:]...)
	}
	if cross(ring[idx[0]], ring[idx[1]], ring[idx[2]]) != 0 {
		emit(idx[0], idx[1], idx[2])
	}
	return tris
}

// findEar returns the position in idx of a vertex whose triangle with its
// neighbours is convex and contains no other remaining vertex, or -1.
// Collinear vertices count as ears so they are dropped without output.
func findEar(ring orb.Ring, idx []int) int {
	m := len(idx)
	for i := range idx {
		a, b, c := ring[idx[(i+m-1)%m]], ring[idx[i]], ring[idx[(i+1)%m]]
		turn := cross(a, b, c)
		if turn < 0 {
			continue
		}
		if turn == 0 {
			return i
		}
		ear := true
		for j := range idx {
			if j == i || j == (i+m-1)%m || j == (i+1)%m {
				continue
			}
			p := ring[idx[j]]
			if p.Equal(a) || p.Equal(b) || p.Equal(c) {
				continue
			}
			if inTriangle(p, a, b, c) {
				ear = false
				break
			}
		}
		if ear {
			return i
		}
	}
	return -1
}

// cross is the z component of (b-a) x (c-a); positive for a left turn.
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// inTriangle reports whether p lies inside or on the counter-clockwise
// triangle abc.
func inTriangle(p, a, b, c orb.Point) bool {
	return cross(a, b, p) >= 0 && cross(b, c, p) >= 0 && cross(c, a, p) >= 0
}

func closed(ring orb.Ring) orb.Ring {
	if ring.Closed() {
		return ring
	}
	out := make(orb.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	return append(out, ring[0])
}
