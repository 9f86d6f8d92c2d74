package mesh

import (
	"math"
	"slices"
	"testing"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

// unitCube returns a closed cube as 12 triangles with some faces wound
// inward, the way exporters occasionally emit them.
func unitCube(x0, y0 float64) Feature {
	coords := []float64{
		x0, y0, 0, x0 + 1, y0, 0, x0 + 1, y0 + 1, 0, x0, y0 + 1, 0,
		x0, y0, 1, x0 + 1, y0, 1, x0 + 1, y0 + 1, 1, x0, y0 + 1, 1,
	}
	indices := []int{
		0, 2, 1, 0, 3, 2, // bottom
		4, 5, 6, 4, 6, 7, // top
		0, 1, 5, 0, 5, 4, // front
		1, 2, 6, 1, 6, 5, // right
		2, 3, 7, 2, 7, 6, // back
		3, 0, 4, 3, 4, 7, // left
	}
	// Reverse two triangles; triangle 0 seeds the fan and stays as is.
	indices[4], indices[5] = indices[5], indices[4]
	indices[19], indices[20] = indices[20], indices[19]
	return Feature{Coordinates: coords, Indices: indices}
}

func TestLoadCube(t *testing.T) {
	m := New(NonManifoldReject)
	if err := m.Load([]Feature{unitCube(100, 200)}, false, [3]float64{100, 200, 0}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := m.Components()[0]
	checkOpposites(t, c.OTable)
	checkWinding(t, c.VTable, c.OTable)

	st := m.Stats()
	if st.BoundaryEdges != 0 {
		t.Errorf("BoundaryEdges = %d, want 0", st.BoundaryEdges)
	}
	if st.FlippedTriangles != 2 {
		t.Errorf("FlippedTriangles = %d, want 2", st.FlippedTriangles)
	}
	if st.Triangles != 12 || st.Vertices != 8 || st.Components != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	// Recentered in x and y only.
	coords := m.AllCoordinates()
	if coords[0] != 0 || coords[1] != 0 || coords[14] != 1 {
		t.Errorf("coordinates not recentered: %v", coords[:15])
	}

	for v := range c.NumVertices() {
		n := c.Normals[3*v : 3*v+3]
		length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
		if math.Abs(length-1) > 1e-9 {
			t.Errorf("normal %d has length %v", v, length)
		}
	}
}

func TestLoadNormalsPointConsistently(t *testing.T) {
	// A flat quad whose second triangle is flipped. After orientation
	// fixing every vertex normal must point the same way.
	f := Feature{
		Coordinates: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		Indices:     []int{0, 1, 2, 1, 2, 3},
	}
	m := New(NonManifoldReject)
	if err := m.Load([]Feature{f}, false, [3]float64{}); err != nil {
		t.Fatal(err)
	}
	normals := m.AllNormals()
	for v := range 4 {
		if normals[3*v+2] != 1 {
			t.Errorf("normal %d = %v, want +z", v, normals[3*v:3*v+3])
		}
	}
}

func TestLoadDegenerateNormalIsZero(t *testing.T) {
	f := Feature{
		Coordinates: []float64{0, 0, 0, 1, 0, 0, 2, 0, 0, 5, 5, 5},
		Indices:     []int{0, 1, 2},
	}
	m := New(NonManifoldReject)
	if err := m.Load([]Feature{f}, true, [3]float64{}); err != nil {
		t.Fatal(err)
	}
	for i, v := range m.AllNormals() {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("normals[%d] = %v, want 0", i, v)
		}
	}
}

func TestLoadKeepsProvidedNormals(t *testing.T) {
	f := Feature{
		Coordinates: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:     []float64{1, 0, 0, 1, 0, 0, 1, 0, 0},
		Indices:     []int{0, 1, 2},
	}
	m := New(NonManifoldReject)
	if err := m.Load([]Feature{f}, false, [3]float64{}); err != nil {
		t.Fatal(err)
	}
	if got := m.AllNormals(); !slices.Equal(got, f.Normals) {
		t.Errorf("AllNormals() = %v, want provided %v", got, f.Normals)
	}

	m = New(NonManifoldReject)
	if err := m.Load([]Feature{f}, true, [3]float64{}); err != nil {
		t.Fatal(err)
	}
	if got := m.AllNormals(); got[2] != 1 {
		t.Errorf("forced recompute: AllNormals() = %v, want +z", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		f    Feature
		code errors.Code
	}{
		{"index out of range", Feature{Coordinates: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, Indices: []int{0, 1, 3}}, errors.ErrCodeDataIntegrity},
		{"negative index", Feature{Coordinates: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, Indices: []int{0, -1, 2}}, errors.ErrCodeDataIntegrity},
		{"ragged coordinates", Feature{Coordinates: []float64{0, 0}}, errors.ErrCodeDataIntegrity},
		{"ragged indices", Feature{Coordinates: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, Indices: []int{0, 1}}, errors.ErrCodeDataIntegrity},
		{"ids mismatch", Feature{Coordinates: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, Indices: []int{0, 1, 2}, IDs: []int{0, 1}}, errors.ErrCodeDataIntegrity},
		{"non-manifold", Feature{
			Coordinates: make([]float64, 15),
			Indices:     []int{0, 1, 2, 1, 0, 3, 0, 1, 4},
		}, errors.ErrCodeNonManifold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(NonManifoldReject)
			err := m.Load([]Feature{tt.f}, false, [3]float64{})
			if !errors.Is(err, tt.code) {
				t.Errorf("Load() error = %v, want code %s", err, tt.code)
			}
			if m.NumComponents() != 0 || m.Version() != 0 {
				t.Errorf("failed Load mutated the mesh")
			}
		})
	}
}

func TestLoadIDsAndSoup(t *testing.T) {
	tri := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
	m := New(NonManifoldReject)
	err := m.Load([]Feature{
		{Coordinates: tri, Indices: []int{0, 1, 2}, IDs: []int{7}},
		{Coordinates: append(slices.Clone(tri), tri...), Triangulated: true},
		{Coordinates: []float64{0, 0, 0, 1, 1, 1}}, // a polyline
	}, false, [3]float64{})
	if err != nil {
		t.Fatal(err)
	}
	// Second component starts after 3 vertices; ids default to the triangle
	// index plus that offset.
	if got, want := m.AllIDs(), []int{7, 3, 4}; !slices.Equal(got, want) {
		t.Errorf("AllIDs() = %v, want %v", got, want)
	}
	if got, want := m.AllIndices(), []int{0, 1, 2, 3, 4, 5, 6, 7, 8}; !slices.Equal(got, want) {
		t.Errorf("AllIndices() = %v, want %v", got, want)
	}
	if got, want := m.CoordsPerComponent(), []int{3, 6, 2}; !slices.Equal(got, want) {
		t.Errorf("CoordsPerComponent() = %v, want %v", got, want)
	}
	if got := m.Filtered(); len(got) != 11 || !got[10] {
		t.Errorf("Filtered() = %v, want 11 true entries", got)
	}
}

func TestFunctionData(t *testing.T) {
	m := New(NonManifoldReject)
	tri := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
	if err := m.Load([]Feature{{Coordinates: tri, Indices: []int{0, 1, 2}}, {Coordinates: tri, Indices: []int{0, 1, 2}}}, false, [3]float64{}); err != nil {
		t.Fatal(err)
	}

	if _, ok := m.FunctionValues("shadow"); ok {
		t.Error("FunctionValues(shadow) ok before load")
	}
	v0 := m.Version()
	if err := m.LoadFunctionData("shadow", [][]float64{{1, 2, 3, 4, 5, 6}, {0, 0, 0, 0, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	if m.Version() == v0 {
		t.Error("LoadFunctionData did not bump the version")
	}
	got, ok := m.FunctionValues("shadow")
	if !ok || !slices.Equal(got, []float64{1, 2, 3, 4, 5, 6}) {
		t.Errorf("FunctionValues() = %v, %v", got, ok)
	}
	if c := m.Components()[1]; !slices.Equal(c.Functions["shadow"][0], []float64{4, 5, 6}) {
		t.Errorf("component 1 field = %v", c.Functions["shadow"][0])
	}

	// Overwrite.
	if err := m.LoadFunctionData("shadow", [][]float64{{9, 9, 9, 9, 9, 9}}); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.FunctionValues("shadow"); got[0] != 9 {
		t.Errorf("FunctionValues() after overwrite = %v", got)
	}
	if err := m.LoadFunctionData("bad", [][]float64{{1, 2}}); !errors.Is(err, errors.ErrCodeDataIntegrity) {
		t.Errorf("short timestep error = %v", err)
	}
	if ids := m.KnotIDs(); !slices.Equal(ids, []string{"shadow"}) {
		t.Errorf("KnotIDs() = %v", ids)
	}
	m.RemoveFunctionData("shadow")
	if _, ok := m.FunctionValues("shadow"); ok {
		t.Error("FunctionValues(shadow) ok after remove")
	}
}

func TestViewsMemoized(t *testing.T) {
	m := New(NonManifoldReject)
	tri := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
	if err := m.Load([]Feature{{Coordinates: tri, Indices: []int{0, 1, 2}}}, false, [3]float64{}); err != nil {
		t.Fatal(err)
	}
	a := m.AllCoordinates()
	b := m.AllCoordinates()
	if &a[0] != &b[0] {
		t.Error("AllCoordinates() rebuilt without a mutation")
	}
	if err := m.Load([]Feature{{Coordinates: tri, Indices: []int{0, 1, 2}}}, false, [3]float64{}); err != nil {
		t.Fatal(err)
	}
	if got := len(m.AllCoordinates()); got != 18 {
		t.Errorf("len(AllCoordinates()) after second Load = %d, want 18", got)
	}
	if err := m.SetFiltered([]bool{true}); err == nil {
		t.Error("SetFiltered with wrong length succeeded")
	}
}
