package mesh

import "github.com/matzehuels/urbanknots/pkg/errors"

// Boundary marks a half-edge without an opposite in OTable.
const Boundary = -1

// NonManifoldPolicy decides what happens when an undirected edge is shared
// by more than two triangles.
type NonManifoldPolicy int

const (
	// NonManifoldReject fails the load with a NON_MANIFOLD error.
	NonManifoldReject NonManifoldPolicy = iota
	// NonManifoldTolerate re-arms the edge so the next two half-edges pair
	// with each other. Extra half-edges without a partner stay boundary.
	NonManifoldTolerate
)

func (p NonManifoldPolicy) String() string {
	if p == NonManifoldTolerate {
		return "tolerate"
	}
	return "reject"
}

// ParseNonManifoldPolicy converts "reject" or "tolerate". The empty string
// is NonManifoldReject.
func ParseNonManifoldPolicy(s string) (NonManifoldPolicy, error) {
	switch s {
	case "", "reject":
		return NonManifoldReject, nil
	case "tolerate":
		return NonManifoldTolerate, nil
	}
	return NonManifoldReject, errors.New(errors.ErrCodeInvalidInput, "unknown non-manifold policy %q", s)
}

// Next returns the half-edge following he inside its triangle.
func Next(he int) int { return 3*(he/3) + (he+1)%3 }

// Prev returns the half-edge preceding he inside its triangle.
func Prev(he int) int { return 3*(he/3) + (he+2)%3 }

type edgeKey [2]int

func keyOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// buildOpposites pairs every half-edge with the half-edge of the adjacent
// triangle that covers the same undirected edge. The first sighting of an
// edge is recorded; the second links both and forgets the edge. It returns
// the opposite table and the number of non-manifold edges seen.
func buildOpposites(vTable []int, policy NonManifoldPolicy) ([]int, int, error) {
	oTable := make([]int, len(vTable))
	for i := range oTable {
		oTable[i] = Boundary
	}
	pending := make(map[edgeKey]int, len(vTable)/2)
	paired := make(map[edgeKey]bool, len(vTable)/2)
	nonManifold := make(map[edgeKey]bool)

	for he := range vTable {
		k := keyOf(vTable[he], vTable[Next(he)])
		if other, ok := pending[k]; ok {
			oTable[he] = other
			oTable[other] = he
			delete(pending, k)
			paired[k] = true
			continue
		}
		if paired[k] {
			if policy == NonManifoldReject {
				return nil, 0, errors.New(errors.ErrCodeNonManifold,
					"edge (%d,%d) is shared by more than two triangles (half-edge %d)", k[0], k[1], he)
			}
			nonManifold[k] = true
		}
		pending[k] = he
	}
	return oTable, len(nonManifold), nil
}

// buildVertHe maps every vertex to one incident half-edge (the half-edge
// leaving it). Boundary half-edges are preferred, and once a vertex holds a
// boundary half-edge it keeps it. Vertices without triangles map to -1.
func buildVertHe(vTable, oTable []int, numVertices int) []int {
	vertHe := make([]int, numVertices)
	for i := range vertHe {
		vertHe[i] = -1
	}
	for he, v := range vTable {
		cur := vertHe[v]
		if cur != -1 && oTable[cur] == Boundary {
			continue
		}
		if cur == -1 || oTable[he] == Boundary {
			vertHe[v] = he
		}
	}
	return vertHe
}

// consistent reports whether he and its opposite op traverse their shared
// edge in opposite directions.
func consistent(vTable []int, he, op int) bool {
	return vTable[he] == vTable[Next(op)] && vTable[Next(he)] == vTable[op]
}

// flip reverses the winding of triangle t by swapping its second and third
// vertex, and relinks the opposite table. Half-edge a (v0->v1) becomes the
// reverse of the old c (v2->v0) and vice versa; b only changes direction.
func flip(vTable, oTable []int, t int) {
	a, b, c := 3*t, 3*t+1, 3*t+2
	vTable[b], vTable[c] = vTable[c], vTable[b]
	oa, oc := oTable[a], oTable[c]
	oTable[a], oTable[c] = oc, oa
	for _, he := range [...]int{a, b, c} {
		if op := oTable[he]; op != Boundary {
			oTable[op] = he
		}
	}
}

// fixOrientation makes every connected fan of triangles wind consistently.
// Each fan is seeded at its lowest-numbered triangle, whose winding is kept.
// The traversal uses an explicit stack so deep meshes cannot overflow the
// goroutine stack. It returns the number of flipped triangles and the
// number of fans.
func fixOrientation(vTable, oTable []int) (flipped, fans int) {
	nTri := len(vTable) / 3
	visited := make([]bool, nTri)
	var stack []int

	for seed := range nTri {
		if visited[seed] {
			continue
		}
		fans++
		visited[seed] = true
		stack = append(stack, 3*seed, 3*seed+1, 3*seed+2)

		for len(stack) > 0 {
			he := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			op := oTable[he]
			if op == Boundary {
				continue
			}
			t := op / 3
			if visited[t] {
				continue
			}
			if !consistent(vTable, he, op) {
				flip(vTable, oTable, t)
				flipped++
			}
			visited[t] = true
			stack = append(stack, 3*t, 3*t+1, 3*t+2)
		}
	}
	return flipped, fans
}

// countBoundary returns the number of half-edges without an opposite.
func countBoundary(oTable []int) int {
	n := 0
	for _, op := range oTable {
		if op == Boundary {
			n++
		}
	}
	return n
}
