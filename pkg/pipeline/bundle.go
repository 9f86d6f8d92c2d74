package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
	uio "github.com/matzehuels/urbanknots/pkg/io"
	"github.com/matzehuels/urbanknots/pkg/project"
)

// Bundle is a project with every input inlined. The API receives bundles
// as request bodies; the CLI builds one from a project file.
type Bundle struct {
	Name   string         `json:"name"`
	Engine project.Engine `json:"engine"`
	Layers []LayerInput   `json:"layers"`
	Knots  []linking.Spec `json:"knots"`
}

// LayerInput is one layer of a bundle.
type LayerInput struct {
	ID               string      `json:"id"`
	Kind             layer.Kind  `json:"kind"`
	Centroid         *[3]float64 `json:"centroid,omitempty"`
	RecomputeNormals bool        `json:"recompute_normals,omitempty"`
	Simplify         float64     `json:"simplify,omitempty"`
	DefaultHeight    float64     `json:"default_height,omitempty"`

	// GeoJSON marks Features as a GeoJSON FeatureCollection instead of the
	// native feature format.
	GeoJSON  bool            `json:"geojson,omitempty"`
	Features json.RawMessage `json:"features"`
	Joins    json.RawMessage `json:"joins,omitempty"`
}

// BundleFromProject reads every file a project references.
func BundleFromProject(p *project.Project) (*Bundle, error) {
	specs, err := p.AllKnots()
	if err != nil {
		return nil, err
	}
	b := &Bundle{Name: p.Name, Engine: p.Engine, Knots: specs}
	for _, l := range p.Layers {
		in := LayerInput{
			ID:               l.ID,
			Kind:             l.Kind,
			Centroid:         l.Centroid,
			RecomputeNormals: l.RecomputeNormals,
			Simplify:         l.Simplify,
			DefaultHeight:    l.DefaultHeight,
			GeoJSON:          uio.IsGeoJSON(l.Features),
		}
		if in.Features, err = readFile(p.Path(l.Features)); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.ID, err)
		}
		if l.Joins != "" {
			if in.Joins, err = readFile(p.Path(l.Joins)); err != nil {
				return nil, fmt.Errorf("layer %s: %w", l.ID, err)
			}
		}
		b.Layers = append(b.Layers, in)
	}
	return b, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	return data, err
}

// Validate checks the bundle's shape before anything is built.
func (b *Bundle) Validate() error {
	if len(b.Layers) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "bundle has no layers")
	}
	seen := make(map[string]bool)
	for i, l := range b.Layers {
		if err := errors.ValidateIdentifier("layer", l.ID); err != nil {
			return fmt.Errorf("layers[%d]: %w", i, err)
		}
		if seen[l.ID] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate layer id %q", l.ID)
		}
		seen[l.ID] = true
		if _, err := layer.ParseKind(string(l.Kind)); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "layer %s", l.ID)
		}
		if len(bytes.TrimSpace(l.Features)) == 0 {
			return errors.New(errors.ErrCodeInvalidInput, "layer %s has no features", l.ID)
		}
	}
	return linking.ValidateSet(b.Knots)
}

// features decodes the layer's geometry.
func (l LayerInput) features() (*uio.FeatureFile, error) {
	r := bytes.NewReader(l.Features)
	if l.GeoJSON {
		return uio.ReadGeoJSON(r, uio.GeoJSONOptions{
			Simplify:      l.Simplify,
			DefaultHeight: l.DefaultHeight,
			Centroid:      l.Centroid,
		})
	}
	ff, err := uio.ReadFeatures(r)
	if err != nil {
		return nil, err
	}
	if l.Centroid != nil {
		ff.Centroid = l.Centroid
	}
	return ff, nil
}

// joins decodes the layer's join tables. Layers without joins get empty
// tables.
func (l LayerInput) joins() (*join.Tables, error) {
	if len(bytes.TrimSpace(l.Joins)) == 0 {
		return join.NewTables(nil)
	}
	return uio.ReadJoins(bytes.NewReader(l.Joins))
}
