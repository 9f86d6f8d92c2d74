// Package project loads urbanknots project files.
//
// A project is a TOML file naming the layers of a document, where their
// geometry and join tables live, and the knots to resolve over them:
//
//	name = "amsterdam-heat"
//
//	[engine]
//	no_match_value = 0.0
//	non_manifold = "reject"
//	parallel = 4
//	centroid = [121000.0, 487000.0, 0.0]
//
//	[[layers]]
//	id = "buildings"
//	kind = "building"
//	features = "data/buildings.geojson"
//	joins = "data/buildings.joins.json"
//
//	[[knots]]
//	id = "sky"
//	[[knots.linkingScheme]]
//	out = { name = "buildings", level = "COORDINATES3D" }
//	in = { name = "skyview", level = "COORDINATES3D" }
//	spatial_relation = "DIRECT"
//	abstract = true
//
// Knots may also live in a separate JSON file (knots_file). Relative paths
// are resolved against the directory of the project file.
package project

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
	uio "github.com/matzehuels/urbanknots/pkg/io"
)

// DefaultFileName is the project file looked up when none is given.
const DefaultFileName = "urbanknots.toml"

// Project is a parsed project file.
type Project struct {
	Name      string         `toml:"name"`
	Engine    Engine         `toml:"engine"`
	Layers    []Layer        `toml:"layers"`
	KnotsFile string         `toml:"knots_file"`
	Knots     []linking.Spec `toml:"knots"`

	dir string
}

// Engine holds resolution settings. Zero values fall back to the pipeline
// defaults.
type Engine struct {
	NoMatchValue *float64 `toml:"no_match_value" json:"no_match_value,omitempty"`
	NonManifold  string   `toml:"non_manifold" json:"non_manifold,omitempty"`
	Parallel     int      `toml:"parallel" json:"parallel,omitempty"`
	// Centroid is the shared local origin of every layer that does not set
	// its own, so all layers of a project end up in one frame.
	Centroid *[3]float64 `toml:"centroid" json:"centroid,omitempty"`
}

// Layer describes one physical layer.
type Layer struct {
	ID               string      `toml:"id"`
	Kind             layer.Kind  `toml:"kind"`
	Features         string      `toml:"features"`
	Joins            string      `toml:"joins"`
	Centroid         *[3]float64 `toml:"centroid"`
	RecomputeNormals bool        `toml:"recompute_normals"`
	// Simplify is the Douglas-Peucker tolerance applied to GeoJSON input.
	Simplify float64 `toml:"simplify"`
	// DefaultHeight extrudes GeoJSON polygons without a height property.
	DefaultHeight float64 `toml:"default_height"`
}

// Load reads and validates the project file at path.
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "project %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(f, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a project from r. dir anchors relative paths.
func Parse(r io.Reader, dir string) (*Project, error) {
	var p Project
	md, err := toml.NewDecoder(r).Decode(&p)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProject, err, "decode project")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidProject, "unknown project keys: %v", undecoded)
	}
	p.dir = dir
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks layer ids, kinds and paths. Knots are validated when they
// are collected by AllKnots.
func (p *Project) Validate() error {
	if len(p.Layers) == 0 {
		return errors.New(errors.ErrCodeInvalidProject, "project declares no layers")
	}
	seen := make(map[string]bool)
	for i, l := range p.Layers {
		if err := errors.ValidateIdentifier("layer", l.ID); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidProject, err, "layers[%d]", i)
		}
		if seen[l.ID] {
			return errors.New(errors.ErrCodeInvalidProject, "duplicate layer id %q", l.ID)
		}
		seen[l.ID] = true
		if _, err := layer.ParseKind(string(l.Kind)); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidProject, err, "layer %s", l.ID)
		}
		if l.Features == "" {
			return errors.New(errors.ErrCodeInvalidProject, "layer %s: features path is required", l.ID)
		}
		for _, path := range []string{l.Features, l.Joins} {
			if path == "" {
				continue
			}
			if err := errors.ValidatePath(path); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidProject, err, "layer %s", l.ID)
			}
		}
	}
	switch p.Engine.NonManifold {
	case "", "reject", "tolerate":
	default:
		return errors.New(errors.ErrCodeInvalidProject, "engine.non_manifold must be reject or tolerate, got %q", p.Engine.NonManifold)
	}
	if p.Engine.Parallel < 0 {
		return errors.New(errors.ErrCodeInvalidProject, "engine.parallel must not be negative")
	}
	return nil
}

// Dir returns the directory relative paths are resolved against.
func (p *Project) Dir() string { return p.dir }

// Path resolves a project-relative path.
func (p *Project) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.dir, rel)
}

// AllKnots returns the knots of knots_file followed by the inline knots,
// validated as one set.
func (p *Project) AllKnots() ([]linking.Spec, error) {
	var specs []linking.Spec
	if p.KnotsFile != "" {
		fromFile, err := uio.ImportKnots(p.Path(p.KnotsFile))
		if err != nil {
			return nil, err
		}
		specs = append(specs, fromFile...)
	}
	specs = append(specs, p.Knots...)
	if err := linking.ValidateSet(specs); err != nil {
		return nil, err
	}
	return specs, nil
}
