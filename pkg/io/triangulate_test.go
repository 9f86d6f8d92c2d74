package io

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

var uShape = orb.Ring{{0, 0}, {3, 0}, {3, 2}, {2, 2}, {2, 1}, {1, 1}, {1, 2}, {0, 2}}

func reversed(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

func TestTriangulateRing(t *testing.T) {
	tests := []struct {
		name string
		ring orb.Ring
		area float64
	}{
		{"square", orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}}, 16},
		{"clockwise square", orb.Ring{{0, 0}, {0, 4}, {4, 4}, {4, 0}}, 16},
		{"u shape", uShape, 5},
		{"clockwise u shape", reversed(uShape), 5},
		{"l shape", orb.Ring{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 3}, {0, 3}}, 4},
		{"collinear point", orb.Ring{{0, 0}, {1, 0}, {2, 0}, {2, 2}, {0, 2}}, 4},
		{"too short", orb.Ring{{0, 0}, {1, 0}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := triangulateRing(tt.ring)
			if len(idx)%3 != 0 || len(idx)/3 > max(len(tt.ring)-2, 0) {
				t.Errorf("got %d indices for a ring of %d points", len(idx), len(tt.ring))
			}
			want := 1.0
			if len(tt.ring) >= 3 && closed(tt.ring).Orientation() == orb.CW {
				want = -1
			}
			var sum float64
			for i := 0; i+2 < len(idx); i += 3 {
				c := cross(tt.ring[idx[i]], tt.ring[idx[i+1]], tt.ring[idx[i+2]])
				if c*want <= 0 {
					t.Errorf("triangle %v winds against the ring", idx[i:i+3])
				}
				sum += math.Abs(c) / 2
			}
			if math.Abs(sum-tt.area) > 1e-9 {
				t.Errorf("triangles cover %v, want %v", sum, tt.area)
			}
		})
	}
}

const uBuilding = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"height": 6},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[3,0],[3,2],[2,2],[2,1],[1,1],[1,2],[0,2],[0,0]]]}}
  ]
}`

func TestReadGeoJSONConcaveRoof(t *testing.T) {
	ff, err := ReadGeoJSON(strings.NewReader(uBuilding), GeoJSONOptions{Centroid: &[3]float64{}})
	if err != nil {
		t.Fatal(err)
	}
	f := ff.Features[0]
	n := len(f.Footprint) / 3
	point := func(v int) orb.Point { return orb.Point{f.Coordinates[3*v], f.Coordinates[3*v+1]} }

	var roof float64
	for tri := 0; tri < len(f.IDs); tri++ {
		if f.IDs[tri] != n {
			continue
		}
		a, b, c := f.Indices[3*tri], f.Indices[3*tri+1], f.Indices[3*tri+2]
		if a < n || b < n || c < n {
			t.Errorf("roof triangle %d uses a base vertex", tri)
		}
		roof += math.Abs(cross(point(a), point(b), point(c))) / 2
	}
	if math.Abs(roof-5) > 1e-9 {
		t.Errorf("roof covers %v, footprint is 5", roof)
	}
}
