package io

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/matzehuels/urbanknots/pkg/core/mesh"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// Property keys read from GeoJSON features.
const (
	PropHeight    = "height"
	PropMinHeight = "minHeight"
	PropElevation = "elevation"
)

// GeoJSONOptions controls the GeoJSON to mesh conversion.
type GeoJSONOptions struct {
	// Simplify, when positive, runs Douglas-Peucker with this tolerance over
	// line strings and polygon rings before meshing.
	Simplify float64
	// DefaultHeight extrudes polygons without a height property.
	DefaultHeight float64
	// Centroid is subtracted from every feature. The zero value uses the
	// center of the collection's bounding box.
	Centroid *[3]float64
}

// IsGeoJSON reports whether path looks like a GeoJSON file.
func IsGeoJSON(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".geojson"
}

// ReadGeoJSON converts a FeatureCollection into mesh features:
//
//   - Point and MultiPoint become one component of points, z taken from the
//     elevation property.
//   - LineString and MultiLineString become polylines (one component per
//     line string).
//   - Polygon and MultiPolygon become extruded prisms between minHeight and
//     height: walls, an ear-clipped roof, and the outer ring as the
//     footprint.
//
// Other geometry types are rejected.
func ReadGeoJSON(r io.Reader, opts GeoJSONOptions) (*FeatureFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode geojson")
	}

	ff := &FeatureFile{Centroid: opts.Centroid}
	if ff.Centroid == nil && len(fc.Features) > 0 {
		b := fc.Features[0].Geometry.Bound()
		for _, f := range fc.Features[1:] {
			b = b.Union(f.Geometry.Bound())
		}
		c := b.Center()
		ff.Centroid = &[3]float64{c[0], c[1], 0}
	}

	for i, f := range fc.Features {
		z := f.Properties.MustFloat64(PropElevation, 0)
		switch g := f.Geometry.(type) {
		case orb.Point:
			ff.Features = append(ff.Features, points([]orb.Point{g}, z))
		case orb.MultiPoint:
			ff.Features = append(ff.Features, points(g, z))
		case orb.LineString:
			ff.Features = append(ff.Features, line(simplifyLine(g, opts.Simplify), z))
		case orb.MultiLineString:
			for _, ls := range g {
				ff.Features = append(ff.Features, line(simplifyLine(ls, opts.Simplify), z))
			}
		case orb.Polygon:
			ff.Features = append(ff.Features, prism(f.Properties, g, opts))
		case orb.MultiPolygon:
			for _, p := range g {
				ff.Features = append(ff.Features, prism(f.Properties, p, opts))
			}
		default:
			return nil, errors.New(errors.ErrCodeUnsupported,
				"feature %d: geometry %s is not supported", i, f.Geometry.GeoJSONType())
		}
	}
	return ff, nil
}

func points(pts []orb.Point, z float64) mesh.Feature {
	coords := make([]float64, 0, 3*len(pts))
	for _, p := range pts {
		coords = append(coords, p[0], p[1], z)
	}
	return mesh.Feature{Coordinates: coords}
}

func line(ls orb.LineString, z float64) mesh.Feature {
	return points(ls, z)
}

func simplifyLine(ls orb.LineString, tolerance float64) orb.LineString {
	if tolerance <= 0 || len(ls) < 3 {
		return ls
	}
	if s, ok := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone()).(orb.LineString); ok && len(s) >= 2 {
		return s
	}
	return ls
}

// prism extrudes the outer ring of p. Holes are ignored.
func prism(props geojson.Properties, p orb.Polygon, opts GeoJSONOptions) mesh.Feature {
	h := props.MustFloat64(PropHeight, opts.DefaultHeight)
	minH := props.MustFloat64(PropMinHeight, 0)
	if len(p) == 0 {
		return mesh.Feature{}
	}

	ring := p[0]
	if opts.Simplify > 0 {
		if s, ok := simplify.DouglasPeucker(opts.Simplify).Simplify(orb.LineString(ring).Clone()).(orb.LineString); ok && len(s) >= 4 {
			ring = orb.Ring(s)
		}
	}
	if len(ring) > 1 && ring.Closed() {
		ring = ring[:len(ring)-1]
	}
	n := len(ring)

	f := mesh.Feature{
		Heights:    []float64{h},
		MinHeights: []float64{minH},
	}
	for _, pt := range ring {
		f.Coordinates = append(f.Coordinates, pt[0], pt[1], minH)
		f.Footprint = append(f.Footprint, pt[0], pt[1], minH)
	}
	for _, pt := range ring {
		f.Coordinates = append(f.Coordinates, pt[0], pt[1], h)
	}

	// One cell per wall, one for the roof.
	for i := range n {
		j := (i + 1) % n
		f.Indices = append(f.Indices, i, j, n+j, i, n+j, n+i)
		f.IDs = append(f.IDs, i, i)
	}
	roof := triangulateRing(ring)
	for i := 0; i+2 < len(roof); i += 3 {
		f.Indices = append(f.Indices, n+roof[i], n+roof[i+1], n+roof[i+2])
		f.IDs = append(f.IDs, n)
	}
	return f
}
