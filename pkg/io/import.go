package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/core/mesh"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// FeatureFile is the native geometry format of one layer.
type FeatureFile struct {
	// Centroid, when set, is subtracted from x and y of every coordinate.
	Centroid *[3]float64    `json:"centroid,omitempty"`
	Features []mesh.Feature `json:"features"`
}

// ReadFeatures decodes a native feature file from r. Both the object form
// ({"features": [...]}) and a bare feature array are accepted.
func ReadFeatures(r io.Reader) (*FeatureFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var ff FeatureFile
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &ff.Features)
	} else {
		err = json.Unmarshal(data, &ff)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode features")
	}
	return &ff, nil
}

// ReadJoins decodes the join tables of one layer: a JSON array of entries,
// each carrying its descriptor and either inValues or inIds.
func ReadJoins(r io.Reader) (*join.Tables, error) {
	var entries []join.Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode joins")
	}
	return join.NewTables(entries)
}

// knotFile is the document form of a knot list.
type knotFile struct {
	Knots []linking.Spec `json:"knots"`
}

// ReadKnots decodes knot specs from r and validates them as a set. Both
// {"knots": [...]} and a bare array are accepted.
func ReadKnots(r io.Reader) ([]linking.Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var specs []linking.Spec
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &specs)
	} else {
		var kf knotFile
		err = json.Unmarshal(data, &kf)
		specs = kf.Knots
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSpec, err, "decode knots")
	}
	if err := linking.ValidateSet(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// ImportFeatures reads a feature file from path. Files ending in .geojson
// are read with [ReadGeoJSON] and default options.
func ImportFeatures(path string) (*FeatureFile, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if IsGeoJSON(path) {
		return ReadGeoJSON(f, GeoJSONOptions{})
	}
	return ReadFeatures(f)
}

// ImportJoins reads join tables from path.
func ImportJoins(path string) (*join.Tables, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadJoins(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ImportKnots reads knot specs from path.
func ImportKnots(path string) ([]linking.Spec, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	specs, err := ReadKnots(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
