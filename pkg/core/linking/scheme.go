package linking

import "slices"

// PrevResult is the identifier an operation-knot expression uses to read the
// value produced by the previous step.
const PrevResult = "prevResult"

// Ref names a layer (or, in operation knots, a knot) at a level.
type Ref struct {
	Name  string `json:"name" toml:"name"`
	Level Level  `json:"level" toml:"level"`
}

func (r Ref) String() string { return r.Name + "@" + r.Level.String() }

// Step is one join or aggregation of a linking scheme.
type Step struct {
	Out          Ref       `json:"out" toml:"out"`
	In           *Ref      `json:"in,omitempty" toml:"in,omitempty"`
	Relation     Relation  `json:"spatial_relation,omitempty" toml:"spatial_relation,omitempty"`
	Operation    Operation `json:"operation" toml:"operation"`
	Abstract     bool      `json:"abstract" toml:"abstract"`
	MaxDistance  *float64  `json:"maxDistance,omitempty" toml:"maxDistance,omitempty"`
	DefaultValue *float64  `json:"defaultValue,omitempty" toml:"defaultValue,omitempty"`

	// Op is the arithmetic expression of an operation-knot step.
	Op string `json:"op,omitempty" toml:"op,omitempty"`
}

// IsInnerAgg reports whether the step changes level inside one layer.
func (s Step) IsInnerAgg() bool { return s.Relation == RelationInnerAgg }

// IsCrossLayer reports whether the step joins two distinct physical layers.
func (s Step) IsCrossLayer() bool {
	return !s.Abstract && s.In != nil && !s.IsInnerAgg()
}

// Spec is a knot: a linking scheme bound to an id.
type Spec struct {
	ID       string `json:"id" toml:"id"`
	Scheme   []Step `json:"linkingScheme" toml:"linkingScheme"`
	KnotOp   bool   `json:"knotOp,omitempty" toml:"knotOp,omitempty"`
	ColorMap string `json:"colorMap,omitempty" toml:"colorMap,omitempty"`
}

// Target returns the layer the knot renders on: the out layer of the last
// step. Operation knots have no target of their own; they return the target
// of the knot named by the last step's out ref, which the caller resolves.
func (s Spec) Target() Ref {
	if len(s.Scheme) == 0 {
		return Ref{}
	}
	return s.Scheme[len(s.Scheme)-1].Out
}

// IsGeometryOnly reports whether the knot renders plain geometry without a
// scalar field.
func (s Spec) IsGeometryOnly() bool {
	return !s.KnotOp && len(s.Scheme) == 1 && s.Scheme[0].In == nil
}

// Layers returns the distinct physical layers the scheme reads from or
// writes to, in first-use order. Abstract partners and knot references are
// excluded.
func (s Spec) Layers() []string {
	if s.KnotOp {
		return nil
	}
	var out []string
	add := func(name string) {
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, st := range s.Scheme {
		add(st.Out.Name)
		if st.In != nil && !st.Abstract {
			add(st.In.Name)
		}
	}
	return out
}

// KnotRefs returns the knot ids an operation knot combines, in first-use
// order. It is nil for ordinary knots.
func (s Spec) KnotRefs() []string {
	if !s.KnotOp {
		return nil
	}
	var out []string
	for _, st := range s.Scheme {
		for _, name := range []string{inName(st), st.Out.Name} {
			if name != "" && !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

func inName(st Step) string {
	if st.In == nil {
		return ""
	}
	return st.In.Name
}
