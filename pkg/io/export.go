package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/urbanknots/pkg/core/knot"
	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
)

// Artifact file names.
const (
	FunctionsFileName = "functions.json"
	BuffersFileName   = "buffers.json"
)

// FunctionsFile lists the resolved array of every knot.
type FunctionsFile struct {
	Knots []KnotFunction `json:"knots"`
}

// KnotFunction is one knot's resolved array at its target level.
type KnotFunction struct {
	ID       string        `json:"id"`
	Layer    string        `json:"layer"`
	Level    linking.Level `json:"level"`
	KnotOp   bool          `json:"knotOp,omitempty"`
	ColorMap string        `json:"colorMap,omitempty"`
	Values   []float64     `json:"values"`
	Min      float64       `json:"min"`
	Max      float64       `json:"max"`
	Error    string        `json:"error,omitempty"`
}

// Functions snapshots the knots of set.
func Functions(set *knot.Set) FunctionsFile {
	colorMaps := make(map[string]string)
	for _, sp := range set.Specs() {
		colorMaps[sp.ID] = sp.ColorMap
	}
	var out FunctionsFile
	for _, st := range set.Statuses() {
		kf := KnotFunction{
			ID:       st.ID,
			Layer:    st.Target.Name,
			Level:    st.Target.Level,
			KnotOp:   st.KnotOp,
			ColorMap: colorMaps[st.ID],
			Min:      st.Min,
			Max:      st.Max,
		}
		if !st.Dirty {
			kf.Values, _ = set.KnotValues(st.ID)
		}
		if st.Err != nil {
			kf.Error = st.Err.Error()
		}
		out.Knots = append(out.Knots, kf)
	}
	return out
}

// BuffersFile holds render-ready arrays for every layer.
type BuffersFile struct {
	Layers []LayerBuffers `json:"layers"`
}

// LayerBuffers are the flattened mesh views of one layer plus the per-vertex
// field of each knot rendered on it.
type LayerBuffers struct {
	ID          string                `json:"id"`
	Kind        layer.Kind            `json:"kind"`
	Centroid    [3]float64            `json:"centroid"`
	Coordinates []float64             `json:"coordinates"`
	Normals     []float64             `json:"normals,omitempty"`
	Indices     []int                 `json:"indices,omitempty"`
	IDs         []int                 `json:"ids,omitempty"`
	Objects     []int                 `json:"objects"`
	Footprint   []float64             `json:"footprint,omitempty"`
	Functions   map[string][]float64  `json:"functions,omitempty"`
	Ranges      map[string][2]float64 `json:"ranges,omitempty"`
	Highlights  []bool                `json:"highlights,omitempty"`
}

// Buffers snapshots every layer of m. Ranges ignore filtered vertices.
func Buffers(m *layer.Manager) BuffersFile {
	var out BuffersFile
	for _, l := range m.Layers() {
		ms := l.Mesh()
		lb := LayerBuffers{
			ID:          l.ID(),
			Kind:        l.Kind(),
			Centroid:    ms.Centroid(),
			Coordinates: ms.AllCoordinates(),
			Normals:     ms.AllNormals(),
			Indices:     ms.AllIndices(),
			IDs:         ms.AllIDs(),
			Objects:     ms.CoordsPerComponent(),
			Footprint:   ms.AllFootprint(),
		}
		for _, id := range ms.KnotIDs() {
			values, _ := ms.FunctionValues(id)
			if lb.Functions == nil {
				lb.Functions = make(map[string][]float64)
				lb.Ranges = make(map[string][2]float64)
			}
			lb.Functions[id] = values
			if lo, hi, ok := l.FunctionRange(id); ok {
				lb.Ranges[id] = [2]float64{lo, hi}
			}
		}
		if hl, err := l.HighlightsByLevel(linking.LevelCoordinates3D); err == nil && anyTrue(hl) {
			lb.Highlights = hl
		}
		out.Layers = append(out.Layers, lb)
	}
	return out
}

func anyTrue(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes v as indented JSON to path.
func ExportJSON(v any, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(f, v)
}
