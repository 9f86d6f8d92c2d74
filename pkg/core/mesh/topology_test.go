package mesh

import (
	"testing"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

// quad is two triangles sharing edge (1,2), wound consistently.
var quad = []int{0, 1, 2, 2, 1, 3}

// tetra is a closed tetrahedron with all faces wound outward.
var tetra = []int{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}

func checkOpposites(t *testing.T, oTable []int) {
	t.Helper()
	for he, op := range oTable {
		if op == Boundary {
			continue
		}
		if oTable[op] != he {
			t.Errorf("oTable[oTable[%d]] = %d, want %d", he, oTable[op], he)
		}
	}
}

func checkWinding(t *testing.T, vTable, oTable []int) {
	t.Helper()
	for he, op := range oTable {
		if op == Boundary {
			continue
		}
		if !consistent(vTable, he, op) {
			t.Errorf("half-edges %d/%d are not wound consistently: %v", he, op, vTable)
		}
	}
}

func TestBuildOpposites(t *testing.T) {
	tests := []struct {
		name         string
		vTable       []int
		wantBoundary int
	}{
		{"single triangle", []int{0, 1, 2}, 3},
		{"quad", quad, 4},
		{"tetrahedron", tetra, 0},
		{"disconnected", []int{0, 1, 2, 3, 4, 5}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oTable, nm, err := buildOpposites(tt.vTable, NonManifoldReject)
			if err != nil {
				t.Fatal(err)
			}
			if nm != 0 {
				t.Errorf("nonManifold = %d, want 0", nm)
			}
			checkOpposites(t, oTable)
			if got := countBoundary(oTable); got != tt.wantBoundary {
				t.Errorf("boundary = %d, want %d", got, tt.wantBoundary)
			}
		})
	}
}

func TestBuildOppositesNonManifold(t *testing.T) {
	// Three triangles fanning off edge (0,1).
	vTable := []int{0, 1, 2, 1, 0, 3, 0, 1, 4}

	_, _, err := buildOpposites(vTable, NonManifoldReject)
	if !errors.Is(err, errors.ErrCodeNonManifold) {
		t.Fatalf("reject: error = %v, want NON_MANIFOLD", err)
	}

	oTable, nm, err := buildOpposites(vTable, NonManifoldTolerate)
	if err != nil {
		t.Fatalf("tolerate: error = %v", err)
	}
	if nm != 1 {
		t.Errorf("nonManifold = %d, want 1", nm)
	}
	checkOpposites(t, oTable)
	if oTable[0] != 3 || oTable[6] != Boundary {
		t.Errorf("oTable = %v, want 0<->3 and 6 boundary", oTable)
	}
}

func TestFixOrientation(t *testing.T) {
	tests := []struct {
		name        string
		vTable      []int
		wantFlipped int
		wantFans    int
	}{
		{"consistent quad", []int{0, 1, 2, 2, 1, 3}, 0, 1},
		{"flipped quad", []int{0, 1, 2, 1, 2, 3}, 1, 1},
		{"strip with two bad", []int{0, 1, 2, 1, 2, 3, 2, 3, 4, 3, 4, 5}, 2, 1},
		{"tetra one bad face", []int{0, 2, 1, 0, 3, 1, 0, 3, 2, 1, 2, 3}, 1, 1},
		// Two separate fans; the second is seeded on its own.
		{"two fans", []int{0, 1, 2, 1, 2, 3, 4, 5, 6, 5, 6, 7}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vTable := append([]int(nil), tt.vTable...)
			oTable, _, err := buildOpposites(vTable, NonManifoldReject)
			if err != nil {
				t.Fatal(err)
			}
			flipped, fans := fixOrientation(vTable, oTable)
			if flipped != tt.wantFlipped {
				t.Errorf("flipped = %d, want %d", flipped, tt.wantFlipped)
			}
			if fans != tt.wantFans {
				t.Errorf("fans = %d, want %d", fans, tt.wantFans)
			}
			checkOpposites(t, oTable)
			checkWinding(t, vTable, oTable)
		})
	}
}

func TestBuildVertHePrefersBoundary(t *testing.T) {
	// Open fan of three triangles around vertex 0, plus an isolated vertex 5.
	vTable := []int{0, 1, 2, 0, 2, 3, 0, 3, 4}
	oTable, _, _ := buildOpposites(vTable, NonManifoldReject)
	vertHe := buildVertHe(vTable, oTable, 6)

	he := vertHe[0]
	if vTable[he] != 0 {
		t.Fatalf("vertHe[0] = %d leaves vertex %d", he, vTable[he])
	}
	if oTable[he] != Boundary {
		t.Errorf("vertHe[0] = %d is interior, want a boundary half-edge", he)
	}
	if vertHe[5] != -1 {
		t.Errorf("vertHe[5] = %d, want -1 for an isolated vertex", vertHe[5])
	}
}

func TestNextPrev(t *testing.T) {
	for he := range 9 {
		if Prev(Next(he)) != he {
			t.Errorf("Prev(Next(%d)) = %d", he, Prev(Next(he)))
		}
		if Next(Next(Next(he))) != he {
			t.Errorf("Next^3(%d) = %d", he, Next(Next(Next(he))))
		}
		if Next(he)/3 != he/3 {
			t.Errorf("Next(%d) left its triangle", he)
		}
	}
}

func TestParseNonManifoldPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    NonManifoldPolicy
		wantErr bool
	}{
		{"", NonManifoldReject, false},
		{"reject", NonManifoldReject, false},
		{"tolerate", NonManifoldTolerate, false},
		{"ignore", NonManifoldReject, true},
	}
	for _, tt := range tests {
		got, err := ParseNonManifoldPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseNonManifoldPolicy(%q) = %v, %v", tt.in, got, err)
		}
		if err == nil && tt.in != "" && got.String() != tt.in {
			t.Errorf("String() = %s, want %s", got, tt.in)
		}
	}
}
