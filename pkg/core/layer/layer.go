package layer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/core/mesh"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// Kind names a layer variant.
type Kind string

const (
	KindPoint    Kind = "point"
	KindLine     Kind = "line"
	KindTriangle Kind = "triangle"
	KindBuilding Kind = "building"
	KindHeatmap  Kind = "heatmap"
)

// Kinds lists every layer variant.
var Kinds = []Kind{KindPoint, KindLine, KindTriangle, KindBuilding, KindHeatmap}

// Layer is a physical layer: a mesh plus the level-conversion policy of its
// variant. Callers query capabilities through SupportsLevel and
// SupportsOperation; every method asked for an unsupported level fails with
// an UNSUPPORTED error.
//
// Arrays at level OBJECTS are always broadcast over the coordinates of the
// layer's object base level, so a running array at any level addresses
// coordinates.
type Layer interface {
	ID() string
	Kind() Kind
	Mesh() *mesh.Mesh

	Joins() *join.Tables
	SetJoins(t *join.Tables)

	// Capabilities.
	Levels() []linking.Level
	SupportsLevel(l linking.Level) bool
	SupportsOperation(op linking.Operation) bool
	ObjectBaseLevel() linking.Level

	// ElementCount is the number of addressable elements at l (components
	// for OBJECTS). LevelLen is the length of a function array at l.
	ElementCount(l linking.Level) (int, error)
	LevelLen(l linking.Level) (int, error)
	FunctionValueIndexOfID(id int, l linking.Level) (int, error)
	Broadcast(perObject []float64) ([]float64, error)

	InnerAggFunc(values []float64, start, end linking.Level, op linking.Operation) ([]float64, error)
	DistributeFunctionValues(knotID string, values []float64, l linking.Level) error

	CoordsByLevel(l linking.Level) ([]float64, error)
	FunctionByLevel(knotID string, l linking.Level) ([]float64, error)
	FunctionRange(knotID string) (lo, hi float64, ok bool)

	HighlightElements(l linking.Level, ids []int) error
	HighlightsByLevel(l linking.Level) ([]bool, error)
	ClearHighlights()
}

// capabilities is the static policy table of a variant.
type capabilities struct {
	levels     []linking.Level
	objectBase linking.Level
	innerAgg   bool
	// footprint makes COORDINATES address the footprint points instead of
	// the mesh vertices.
	footprint bool
}

var variants = map[Kind]capabilities{
	KindPoint: {
		levels:     []linking.Level{linking.LevelCoordinates3D, linking.LevelObjects},
		objectBase: linking.LevelCoordinates3D,
		innerAgg:   true,
	},
	KindLine: {
		levels:     []linking.Level{linking.LevelCoordinates, linking.LevelObjects},
		objectBase: linking.LevelCoordinates,
		innerAgg:   true,
	},
	KindTriangle: {
		levels:     []linking.Level{linking.LevelCoordinates, linking.LevelCoordinates3D, linking.LevelObjects},
		objectBase: linking.LevelCoordinates3D,
		innerAgg:   true,
	},
	KindBuilding: {
		levels:     []linking.Level{linking.LevelCoordinates, linking.LevelCoordinates3D, linking.LevelObjects},
		objectBase: linking.LevelCoordinates3D,
		innerAgg:   true,
		footprint:  true,
	},
	KindHeatmap: {
		levels:     []linking.Level{linking.LevelCoordinates3D},
		objectBase: linking.LevelCoordinates3D,
	},
}

// base implements Layer for every variant; the variant only contributes its
// capabilities.
type base struct {
	id   string
	kind Kind
	caps capabilities
	mesh *mesh.Mesh

	mu          sync.Mutex
	joins       *join.Tables
	highlighted []bool // per mesh vertex
	nearest     nearestCache
}

// Point renders scattered 3D points.
type Point struct{ *base }

// Line renders polylines; its coordinates are 2D path points.
type Line struct{ *base }

// Triangle renders generic triangle meshes (terrain, water).
type Triangle struct{ *base }

// Building renders extruded buildings. COORDINATES addresses footprint
// points; values there reach the 3D mesh through the nearest footprint point.
type Building struct{ *base }

// Heatmap renders a scalar raster draped on a mesh. It only knows
// COORDINATES3D.
type Heatmap struct{ *base }

func newBase(id string, kind Kind, m *mesh.Mesh) *base {
	if m == nil {
		m = mesh.New(mesh.NonManifoldReject)
	}
	return &base{id: id, kind: kind, caps: variants[kind], mesh: m, joins: &join.Tables{}}
}

func NewPoint(id string, m *mesh.Mesh) *Point       { return &Point{newBase(id, KindPoint, m)} }
func NewLine(id string, m *mesh.Mesh) *Line         { return &Line{newBase(id, KindLine, m)} }
func NewTriangle(id string, m *mesh.Mesh) *Triangle { return &Triangle{newBase(id, KindTriangle, m)} }
func NewBuilding(id string, m *mesh.Mesh) *Building { return &Building{newBase(id, KindBuilding, m)} }
func NewHeatmap(id string, m *mesh.Mesh) *Heatmap   { return &Heatmap{newBase(id, KindHeatmap, m)} }

// New creates a layer of the given kind.
func New(kind Kind, id string, m *mesh.Mesh) (Layer, error) {
	if err := errors.ValidateIdentifier("layer", id); err != nil {
		return nil, err
	}
	switch kind {
	case KindPoint:
		return NewPoint(id, m), nil
	case KindLine:
		return NewLine(id, m), nil
	case KindTriangle:
		return NewTriangle(id, m), nil
	case KindBuilding:
		return NewBuilding(id, m), nil
	case KindHeatmap:
		return NewHeatmap(id, m), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidSpec, "layer %s: unknown kind %q", id, kind)
}

// ParseKind converts the text form of a layer kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if slices.Contains(Kinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown layer kind %q", s)
}

func (b *base) ID() string              { return b.id }
func (b *base) Kind() Kind              { return b.kind }
func (b *base) Mesh() *mesh.Mesh        { return b.mesh }
func (b *base) String() string          { return string(b.kind) + ":" + b.id }
func (b *base) Levels() []linking.Level { return slices.Clone(b.caps.levels) }

func (b *base) ObjectBaseLevel() linking.Level { return b.caps.objectBase }

func (b *base) Joins() *join.Tables {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joins
}

func (b *base) SetJoins(t *join.Tables) {
	if t == nil {
		t = &join.Tables{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joins = t
}

func (b *base) SupportsLevel(l linking.Level) bool {
	return slices.Contains(b.caps.levels, l)
}

// SupportsOperation reports whether op can reduce values inside this layer
// (INNERAGG). NONE never can.
func (b *base) SupportsOperation(op linking.Operation) bool {
	return b.caps.innerAgg && op != linking.OpNone
}

func (b *base) requireLevel(l linking.Level) error {
	if !b.SupportsLevel(l) {
		return errors.New(errors.ErrCodeUnsupported, "%s layer %s does not support level %s", b.kind, b.id, l)
	}
	return nil
}
