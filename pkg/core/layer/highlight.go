package layer

import (
	"github.com/matzehuels/urbanknots/pkg/core/aggregate"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// HighlightElements marks the elements ids (addressed at level l) as
// highlighted. Highlights accumulate until ClearHighlights.
func (b *base) HighlightElements(l linking.Level, ids []int) error {
	n, err := b.ElementCount(l)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id < 0 || id >= n {
			return errors.New(errors.ErrCodeDataIntegrity, "layer %s: highlight id %d out of range at %s", b.id, id, l)
		}
	}

	nv := b.mesh.NumVertices()
	var nearest []int
	if l == linking.LevelCoordinates && b.caps.footprint {
		nearest = b.nearestFootprint()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.highlighted) != nv {
		b.highlighted = make([]bool, nv)
	}
	switch {
	case l == linking.LevelObjects:
		counts := b.mesh.CoordsPerComponent()
		offsets := aggregate.Offsets(counts)
		for _, id := range ids {
			for v := offsets[id]; v < offsets[id]+counts[id]; v++ {
				b.highlighted[v] = true
			}
		}
	case nearest != nil:
		want := make(map[int]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		for v, fp := range nearest {
			if want[fp] {
				b.highlighted[v] = true
			}
		}
	default:
		for _, id := range ids {
			b.highlighted[id] = true
		}
	}
	return nil
}

// ClearHighlights removes every highlight.
func (b *base) ClearHighlights() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.highlighted = nil
}

// HighlightsByLevel returns one flag per entry of a function array at l. At
// OBJECTS a component is highlighted when any of its vertices is; a
// footprint point is highlighted when any vertex mapped to it is.
func (b *base) HighlightsByLevel(l linking.Level) ([]bool, error) {
	n, err := b.LevelLen(l)
	if err != nil {
		return nil, err
	}
	nv := b.mesh.NumVertices()
	var nearest []int
	if l == linking.LevelCoordinates && b.caps.footprint {
		nearest = b.nearestFootprint()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bool, n)
	if len(b.highlighted) != nv {
		return out, nil
	}
	switch {
	case l == linking.LevelObjects:
		counts := b.mesh.CoordsPerComponent()
		off := 0
		for _, c := range counts {
			hit := false
			for v := off; v < off+c; v++ {
				hit = hit || b.highlighted[v]
			}
			for v := off; v < off+c; v++ {
				out[v] = hit
			}
			off += c
		}
	case nearest != nil:
		for v, fp := range nearest {
			if fp >= 0 && b.highlighted[v] {
				out[fp] = true
			}
		}
	default:
		copy(out, b.highlighted)
	}
	return out, nil
}
