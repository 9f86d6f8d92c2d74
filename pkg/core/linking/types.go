package linking

import (
	"fmt"
	"strings"
)

// Level is the granularity at which a scalar value or coordinate is addressed.
type Level int

const (
	// LevelUnspecified is the zero value. It is never valid inside a step.
	LevelUnspecified Level = iota
	// LevelCoordinates addresses raw (footprint or polyline) points.
	LevelCoordinates
	// LevelCoordinates3D addresses 3D mesh vertices.
	LevelCoordinates3D
	// LevelObjects addresses whole components (one building, one street).
	LevelObjects
)

var levelNames = [...]string{
	LevelUnspecified:   "",
	LevelCoordinates:   "COORDINATES",
	LevelCoordinates3D: "COORDINATES3D",
	LevelObjects:       "OBJECTS",
}

// Levels lists every addressable level in ascending granularity.
var Levels = []Level{LevelCoordinates, LevelCoordinates3D, LevelObjects}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	if l == LevelUnspecified {
		return "UNSPECIFIED"
	}
	return levelNames[l]
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(levelNames) {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Parsing is
// case-insensitive; the empty string yields LevelUnspecified.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLevel converts the text form of a level.
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelUnspecified, fmt.Errorf("unknown level %q", s)
}

// Operation is the reduction applied when several values collapse into one.
type Operation int

const (
	// OpNone performs no reduction. It is the only operation allowed in
	// abstract steps that copy values and in operation knots.
	OpNone Operation = iota
	OpMax
	OpMin
	OpAvg
	OpSum
	OpCount
	// OpDiscard keeps the first value and drops the rest.
	OpDiscard
)

var operationNames = [...]string{
	OpNone:    "NONE",
	OpMax:     "MAX",
	OpMin:     "MIN",
	OpAvg:     "AVG",
	OpSum:     "SUM",
	OpCount:   "COUNT",
	OpDiscard: "DISCARD",
}

// Operations lists every operation, OpNone first.
var Operations = []Operation{OpNone, OpMax, OpMin, OpAvg, OpSum, OpCount, OpDiscard}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(operationNames) {
		return nil, fmt.Errorf("invalid operation %d", int(o))
	}
	return []byte(operationNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The empty string
// yields OpNone.
func (o *Operation) UnmarshalText(b []byte) error {
	v, err := ParseOperation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseOperation converts the text form of an operation.
func ParseOperation(s string) (Operation, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return OpNone, nil
	}
	for i, name := range operationNames {
		if name == s {
			return Operation(i), nil
		}
	}
	return OpNone, fmt.Errorf("unknown operation %q", s)
}

// Relation is the spatial or abstract relation a join was computed with.
type Relation int

const (
	RelationUnspecified Relation = iota
	RelationIntersects
	RelationContains
	RelationWithin
	RelationTouches
	RelationCrosses
	RelationOverlaps
	RelationNearest
	// RelationDirect joins by identity (abstract tables keyed by element).
	RelationDirect
	// RelationInnerAgg changes level inside one layer.
	RelationInnerAgg
)

var relationNames = [...]string{
	RelationUnspecified: "",
	RelationIntersects:  "INTERSECTS",
	RelationContains:    "CONTAINS",
	RelationWithin:      "WITHIN",
	RelationTouches:     "TOUCHES",
	RelationCrosses:     "CROSSES",
	RelationOverlaps:    "OVERLAPS",
	RelationNearest:     "NEAREST",
	RelationDirect:      "DIRECT",
	RelationInnerAgg:    "INNERAGG",
}

func (r Relation) String() string {
	if r < 0 || int(r) >= len(relationNames) {
		return fmt.Sprintf("Relation(%d)", int(r))
	}
	if r == RelationUnspecified {
		return "UNSPECIFIED"
	}
	return relationNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r Relation) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(relationNames) {
		return nil, fmt.Errorf("invalid relation %d", int(r))
	}
	return []byte(relationNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Relation) UnmarshalText(b []byte) error {
	v, err := ParseRelation(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRelation converts the text form of a relation.
func ParseRelation(s string) (Relation, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range relationNames {
		if name == s {
			return Relation(i), nil
		}
	}
	return RelationUnspecified, fmt.Errorf("unknown spatial relation %q", s)
}

// IsSpatial reports whether r relates two physical layers geometrically.
func (r Relation) IsSpatial() bool {
	return r >= RelationIntersects && r <= RelationNearest
}
