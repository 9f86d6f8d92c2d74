package mesh

import (
	"slices"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

// Feature is the raw geometry of one component as delivered by the feature
// source. Only Coordinates is required.
type Feature struct {
	Coordinates []float64 `json:"coordinates"`
	Normals     []float64 `json:"normals,omitempty"`
	Indices     []int     `json:"indices,omitempty"`
	IDs         []int     `json:"ids,omitempty"`

	// Section metadata, copied verbatim (footprint is recentered).
	Heights    []float64 `json:"heights,omitempty"`
	MinHeights []float64 `json:"minHeights,omitempty"`
	Footprint  []float64 `json:"footprint,omitempty"`
	Envelope   []float64 `json:"envelope,omitempty"`

	// Triangulated marks coordinates without indices as a triangle soup.
	Triangulated bool `json:"triangulated,omitempty"`
}

// Component is one connected geometric feature with its half-edge tables.
// Components are owned by their Mesh; treat every slice as read-only.
type Component struct {
	Coordinates []float64
	Normals     []float64
	IDs         []int
	VTable      []int
	OTable      []int
	VertHe      []int

	Heights    []float64
	MinHeights []float64
	Footprint  []float64
	Envelope   []float64

	// Functions maps a knot id to its timesteps, each one value per vertex.
	Functions map[string][][]float64
}

// NumVertices returns the number of 3D vertices.
func (c *Component) NumVertices() int { return len(c.Coordinates) / 3 }

// NumTriangles returns the number of triangles.
func (c *Component) NumTriangles() int { return len(c.VTable) / 3 }

// NumFootprint returns the number of footprint points.
func (c *Component) NumFootprint() int { return len(c.Footprint) / 3 }

// componentStats are the per-component counters folded into Stats.
type componentStats struct {
	boundary, nonManifold, flipped, fans int
}

// buildComponent ingests one feature. base is the number of vertices loaded
// before it and offsets the cell ids.
func buildComponent(f Feature, base int, centroid [3]float64, policy NonManifoldPolicy) (*Component, componentStats, error) {
	var st componentStats
	if len(f.Coordinates)%3 != 0 {
		return nil, st, errors.New(errors.ErrCodeDataIntegrity,
			"coordinates length %d is not a multiple of 3", len(f.Coordinates))
	}
	if len(f.Footprint)%3 != 0 {
		return nil, st, errors.New(errors.ErrCodeDataIntegrity,
			"footprint length %d is not a multiple of 3", len(f.Footprint))
	}
	n := len(f.Coordinates) / 3

	c := &Component{
		Coordinates: recenter(f.Coordinates, centroid),
		Footprint:   recenter(f.Footprint, centroid),
		Heights:     slices.Clone(f.Heights),
		MinHeights:  slices.Clone(f.MinHeights),
		Envelope:    slices.Clone(f.Envelope),
		Functions:   make(map[string][][]float64),
	}
	if len(f.Normals) == len(f.Coordinates) {
		c.Normals = slices.Clone(f.Normals)
	}

	switch {
	case f.Indices != nil:
		if len(f.Indices)%3 != 0 {
			return nil, st, errors.New(errors.ErrCodeDataIntegrity,
				"indices length %d is not a multiple of 3", len(f.Indices))
		}
		for i, v := range f.Indices {
			if v < 0 || v >= n {
				return nil, st, errors.New(errors.ErrCodeDataIntegrity,
					"triangle index %d at position %d out of range [0,%d)", v, i, n)
			}
		}
		c.VTable = slices.Clone(f.Indices)
	case f.Triangulated && n%3 == 0:
		c.VTable = make([]int, n)
		for i := range c.VTable {
			c.VTable[i] = i
		}
	}

	k := len(c.VTable) / 3
	switch {
	case f.IDs == nil:
		c.IDs = make([]int, k)
		for t := range c.IDs {
			c.IDs[t] = base + t
		}
	case len(f.IDs) == k:
		c.IDs = make([]int, k)
		for t, id := range f.IDs {
			c.IDs[t] = base + id
		}
	default:
		return nil, st, errors.New(errors.ErrCodeDataIntegrity, "%d cell ids for %d triangles", len(f.IDs), k)
	}

	oTable, nonManifold, err := buildOpposites(c.VTable, policy)
	if err != nil {
		return nil, st, err
	}
	c.OTable = oTable
	st.flipped, st.fans = fixOrientation(c.VTable, c.OTable)
	c.VertHe = buildVertHe(c.VTable, c.OTable, n)
	st.nonManifold = nonManifold
	st.boundary = countBoundary(c.OTable)
	return c, st, nil
}

func recenter(xyz []float64, centroid [3]float64) []float64 {
	if xyz == nil {
		return nil
	}
	out := slices.Clone(xyz)
	for i := 0; i+2 < len(out); i += 3 {
		out[i] -= centroid[0]
		out[i+1] -= centroid[1]
	}
	return out
}
