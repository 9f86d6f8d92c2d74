package layer

import (
	"math"

	"github.com/matzehuels/urbanknots/pkg/core/aggregate"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// countsAt returns, per component, how many entries a function array at
// level l holds.
func (b *base) countsAt(l linking.Level) []int {
	switch {
	case l == linking.LevelObjects:
		return b.countsAt(b.caps.objectBase)
	case l == linking.LevelCoordinates && b.caps.footprint:
		return b.mesh.FootprintPerComponent()
	default:
		return b.mesh.CoordsPerComponent()
	}
}

func (b *base) ElementCount(l linking.Level) (int, error) {
	if err := b.requireLevel(l); err != nil {
		return 0, err
	}
	if l == linking.LevelObjects {
		return b.mesh.NumComponents(), nil
	}
	return aggregate.Total(b.countsAt(l)), nil
}

func (b *base) LevelLen(l linking.Level) (int, error) {
	if err := b.requireLevel(l); err != nil {
		return 0, err
	}
	return aggregate.Total(b.countsAt(l)), nil
}

// FunctionValueIndexOfID maps an element id to the index of the function
// array at l that holds its value: the first base coordinate of component
// id for OBJECTS, id itself for coordinate levels.
func (b *base) FunctionValueIndexOfID(id int, l linking.Level) (int, error) {
	n, err := b.ElementCount(l)
	if err != nil {
		return 0, err
	}
	if id < 0 || id >= n {
		return 0, errors.New(errors.ErrCodeDataIntegrity,
			"layer %s: element id %d out of range at %s (%d elements)", b.id, id, l, n)
	}
	if l == linking.LevelObjects {
		return aggregate.Offsets(b.countsAt(l))[id], nil
	}
	return id, nil
}

// Broadcast spreads one value per component over the object base level.
func (b *base) Broadcast(perObject []float64) ([]float64, error) {
	if err := b.requireLevel(linking.LevelObjects); err != nil {
		return nil, err
	}
	if n := b.mesh.NumComponents(); len(perObject) != n {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"layer %s: %d object values for %d objects", b.id, len(perObject), n)
	}
	return aggregate.Broadcast(perObject, b.countsAt(linking.LevelObjects)), nil
}

func (b *base) InnerAggFunc(values []float64, start, end linking.Level, op linking.Operation) ([]float64, error) {
	if !b.caps.innerAgg {
		return nil, errors.New(errors.ErrCodeUnsupported, "%s layer %s does not support inner aggregation", b.kind, b.id)
	}
	if err := b.requireLevel(start); err != nil {
		return nil, err
	}
	if err := b.requireLevel(end); err != nil {
		return nil, err
	}
	groups := b.countsAt(start)
	if start == linking.LevelObjects {
		groups = nil
	}
	return aggregate.InnerAgg(values, groups, b.countsAt(linking.LevelObjects), start, end, op)
}

// DistributeFunctionValues turns an array at level l into one value per mesh
// vertex and attaches it to the mesh as the field of knotID.
func (b *base) DistributeFunctionValues(knotID string, values []float64, l linking.Level) error {
	want, err := b.LevelLen(l)
	if err != nil {
		return err
	}
	if len(values) != want {
		return errors.New(errors.ErrCodeDataIntegrity,
			"layer %s: knot %s has %d values, %s needs %d", b.id, knotID, len(values), l, want)
	}
	perVertex := values
	if l == linking.LevelCoordinates && b.caps.footprint {
		perVertex = b.footprintToVertices(values)
	}
	return b.mesh.LoadFunctionData(knotID, [][]float64{perVertex})
}

// footprintToVertices gives every vertex the value of its nearest footprint
// point and smooths the result over each component's cells.
func (b *base) footprintToVertices(values []float64) []float64 {
	nearest := b.nearestFootprint()
	perVertex := make([]float64, len(nearest))
	for v, fp := range nearest {
		if fp >= 0 {
			perVertex[v] = values[fp]
		}
	}

	out := make([]float64, 0, len(perVertex))
	off := 0
	for _, c := range b.mesh.Components() {
		n := c.NumVertices()
		local := perVertex[off : off+n]
		if c.NumTriangles() > 0 {
			local = aggregate.Smooth(local, c.VTable, c.IDs)
		}
		out = append(out, local...)
		off += n
	}
	return out
}

// CoordsByLevel returns flat xyz coordinates aligned with function arrays at
// l. OBJECTS returns the object base coordinates.
func (b *base) CoordsByLevel(l linking.Level) ([]float64, error) {
	if err := b.requireLevel(l); err != nil {
		return nil, err
	}
	if l == linking.LevelCoordinates && b.caps.footprint {
		return b.mesh.AllFootprint(), nil
	}
	return b.mesh.AllCoordinates(), nil
}

// FunctionByLevel reads the field of knotID at level l. OBJECTS averages
// each component and broadcasts; footprint COORDINATES averages the
// vertices whose nearest footprint point it is.
func (b *base) FunctionByLevel(knotID string, l linking.Level) ([]float64, error) {
	if err := b.requireLevel(l); err != nil {
		return nil, err
	}
	values, ok := b.mesh.FunctionValues(knotID)
	if !ok {
		return nil, errors.New(errors.ErrCodeKnotNotFound, "layer %s has no values for knot %s", b.id, knotID)
	}
	switch {
	case l == linking.LevelObjects:
		counts := b.mesh.CoordsPerComponent()
		perObject := make([]float64, len(counts))
		for i, off := range aggregate.Offsets(counts) {
			perObject[i], _ = aggregate.Reduce(linking.OpAvg, values[off:off+counts[i]])
		}
		return aggregate.Broadcast(perObject, b.countsAt(l)), nil
	case l == linking.LevelCoordinates && b.caps.footprint:
		nearest := b.nearestFootprint()
		n := aggregate.Total(b.mesh.FootprintPerComponent())
		sum := make([]float64, n)
		cnt := make([]int, n)
		for v, fp := range nearest {
			if fp >= 0 {
				sum[fp] += values[v]
				cnt[fp]++
			}
		}
		for i := range sum {
			if cnt[i] > 0 {
				sum[i] /= float64(cnt[i])
			}
		}
		return sum, nil
	}
	return values, nil
}

// FunctionRange returns the value range of knotID over the vertices kept by
// the mesh filter mask.
func (b *base) FunctionRange(knotID string) (lo, hi float64, ok bool) {
	values, found := b.mesh.FunctionValues(knotID)
	if !found {
		return 0, 0, false
	}
	return aggregate.Range(values, b.mesh.Filtered())
}

// nearestCache memoizes the vertex to footprint point mapping per mesh
// geometry version.
type nearestCache struct {
	version uint64
	valid   bool
	index   []int
}

// nearestFootprint maps every mesh vertex to the global index of the closest
// footprint point (2D distance) of its own component, or -1 when the
// component has no footprint.
func (b *base) nearestFootprint() []int {
	version := b.mesh.GeometryVersion()
	b.mu.Lock()
	if b.nearest.valid && b.nearest.version == version {
		idx := b.nearest.index
		b.mu.Unlock()
		return idx
	}
	b.mu.Unlock()

	var index []int
	fpBase := 0
	for _, c := range b.mesh.Components() {
		nf := c.NumFootprint()
		for v := range c.NumVertices() {
			x, y := c.Coordinates[3*v], c.Coordinates[3*v+1]
			best, bestD := -1, math.Inf(1)
			for f := range nf {
				dx, dy := c.Footprint[3*f]-x, c.Footprint[3*f+1]-y
				if d := dx*dx + dy*dy; d < bestD {
					best, bestD = f, d
				}
			}
			if best >= 0 {
				best += fpBase
			}
			index = append(index, best)
		}
		fpBase += nf
	}

	b.mu.Lock()
	b.nearest = nearestCache{version: version, valid: true, index: index}
	b.mu.Unlock()
	return index
}
