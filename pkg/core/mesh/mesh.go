package mesh

import (
	"slices"
	"sort"
	"sync"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

// Stats summarizes the topology of a mesh.
type Stats struct {
	Components       int `json:"components"`
	Vertices         int `json:"vertices"`
	Triangles        int `json:"triangles"`
	FootprintPoints  int `json:"footprintPoints"`
	BoundaryEdges    int `json:"boundaryEdges"`
	NonManifoldEdges int `json:"nonManifoldEdges"`
	FlippedTriangles int `json:"flippedTriangles"`
	Fans             int `json:"fans"`
}

// Mesh is an ordered collection of components sharing one centroid.
//
// Flattened views are built on first access and memoized until the next
// mutation; every mutation bumps the version, which invalidates them.
// Mesh is safe for concurrent use; slices it returns must not be modified.
type Mesh struct {
	mu         sync.Mutex
	components []*Component
	filtered   []bool
	centroid   [3]float64
	policy     NonManifoldPolicy
	stats      Stats

	version  uint64
	geometry uint64
	views    *views
	funcs    map[string]funcView
}

type views struct {
	version     uint64
	coords      []float64
	normals     []float64
	indices     []int
	ids         []int
	footprint   []float64
	perObject   []int
	perFootprnt []int
}

type funcView struct {
	version uint64
	values  []float64
}

// New returns an empty mesh using policy for non-manifold edges.
func New(policy NonManifoldPolicy) *Mesh {
	return &Mesh{policy: policy, funcs: make(map[string]funcView)}
}

// Load appends one component per feature. Coordinates and footprints are
// recentered by centroid (x and y only). Normals are recomputed for every
// component when recomputeNormals is set or any feature lacks them.
//
// Load is atomic: on error the mesh is left unchanged.
func (m *Mesh) Load(features []Feature, recomputeNormals bool, centroid [3]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.numVerticesLocked()
	built := make([]*Component, 0, len(features))
	stats := m.stats
	for i, f := range features {
		c, st, err := buildComponent(f, base, centroid, m.policy)
		if err != nil {
			return errors.Wrap(errors.GetCode(err), err, "feature %d", i)
		}
		if c.Normals == nil {
			recomputeNormals = true
		}
		base += c.NumVertices()
		built = append(built, c)

		stats.Components++
		stats.Vertices += c.NumVertices()
		stats.Triangles += c.NumTriangles()
		stats.FootprintPoints += c.NumFootprint()
		stats.BoundaryEdges += st.boundary
		stats.NonManifoldEdges += st.nonManifold
		stats.FlippedTriangles += st.flipped
		stats.Fans += st.fans
	}
	if recomputeNormals {
		for _, c := range built {
			c.Normals = computeNormals(c.Coordinates, c.VTable)
		}
	}

	m.components = append(m.components, built...)
	m.centroid = centroid
	m.stats = stats
	m.filtered = make([]bool, base)
	for i := range m.filtered {
		m.filtered[i] = true
	}
	m.version++
	m.geometry++
	return nil
}

// LoadFunctionData attaches (or overwrites) the field of knotID. Each
// timestep holds one value per vertex across all components, in component
// order.
func (m *Mesh) LoadFunctionData(knotID string, timesteps [][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.numVerticesLocked()
	for t, ts := range timesteps {
		if len(ts) != n {
			return errors.New(errors.ErrCodeDataIntegrity,
				"knot %s: timestep %d has %d values for %d vertices", knotID, t, len(ts), n)
		}
	}
	off := 0
	for _, c := range m.components {
		nv := c.NumVertices()
		split := make([][]float64, len(timesteps))
		for t, ts := range timesteps {
			split[t] = slices.Clone(ts[off : off+nv])
		}
		c.Functions[knotID] = split
		off += nv
	}
	m.version++
	return nil
}

// RemoveFunctionData drops the field of knotID from every component.
func (m *Mesh) RemoveFunctionData(knotID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.components {
		delete(c.Functions, knotID)
	}
	m.version++
}

// SetFiltered replaces the filter mask. True keeps a vertex in scope.
func (m *Mesh) SetFiltered(mask []bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.numVerticesLocked(); len(mask) != n {
		return errors.New(errors.ErrCodeDataIntegrity, "filter mask has %d entries for %d vertices", len(mask), n)
	}
	m.filtered = slices.Clone(mask)
	m.version++
	return nil
}

// Filtered returns the current filter mask.
func (m *Mesh) Filtered() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filtered
}

// Version increases with every mutation.
func (m *Mesh) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// GeometryVersion increases only when components are loaded.
func (m *Mesh) GeometryVersion() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geometry
}

func (m *Mesh) Centroid() [3]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.centroid
}

func (m *Mesh) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Components returns the components in load order.
func (m *Mesh) Components() []*Component {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.components)
}

func (m *Mesh) NumComponents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.components)
}

func (m *Mesh) NumVertices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numVerticesLocked()
}

func (m *Mesh) numVerticesLocked() int {
	n := 0
	for _, c := range m.components {
		n += c.NumVertices()
	}
	return n
}

// AllCoordinates returns the flattened xyz of every vertex.
func (m *Mesh) AllCoordinates() []float64 { return m.view().coords }

// AllNormals returns the flattened vertex normals.
func (m *Mesh) AllNormals() []float64 { return m.view().normals }

// AllIndices returns the triangle vertex indices, offset to index
// AllCoordinates.
func (m *Mesh) AllIndices() []int { return m.view().indices }

// AllIDs returns the cell id of every triangle.
func (m *Mesh) AllIDs() []int { return m.view().ids }

// AllFootprint returns the flattened footprint points of every component.
func (m *Mesh) AllFootprint() []float64 { return m.view().footprint }

// CoordsPerComponent returns the vertex count of every component.
func (m *Mesh) CoordsPerComponent() []int { return m.view().perObject }

// FootprintPerComponent returns the footprint point count of every component.
func (m *Mesh) FootprintPerComponent() []int { return m.view().perFootprnt }

func (m *Mesh) view() *views {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.views != nil && m.views.version == m.version {
		return m.views
	}

	v := &views{version: m.version}
	base := 0
	for _, c := range m.components {
		v.coords = append(v.coords, c.Coordinates...)
		v.normals = append(v.normals, c.Normals...)
		for _, i := range c.VTable {
			v.indices = append(v.indices, base+i)
		}
		v.ids = append(v.ids, c.IDs...)
		v.footprint = append(v.footprint, c.Footprint...)
		v.perObject = append(v.perObject, c.NumVertices())
		v.perFootprnt = append(v.perFootprnt, c.NumFootprint())
		base += c.NumVertices()
	}
	m.views = v
	return v
}

// FunctionValues returns the first timestep of knotID flattened over all
// vertices. ok is false if no component carries the knot.
func (m *Mesh) FunctionValues(knotID string) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fv, hit := m.funcs[knotID]; hit && fv.version == m.version {
		return fv.values, fv.values != nil
	}

	var out []float64
	found := false
	for _, c := range m.components {
		ts, ok := c.Functions[knotID]
		if !ok || len(ts) == 0 {
			out = append(out, make([]float64, c.NumVertices())...)
			continue
		}
		found = true
		out = append(out, ts[0]...)
	}
	if !found {
		out = nil
	}
	m.funcs[knotID] = funcView{version: m.version, values: out}
	return out, found
}

// KnotIDs returns the sorted ids of every field attached to the mesh.
func (m *Mesh) KnotIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, c := range m.components {
		for id := range c.Functions {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
