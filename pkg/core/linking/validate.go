package linking

import (
	"slices"

	"github.com/matzehuels/urbanknots/pkg/core/expr"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// Validate checks one knot eagerly, before any resolution. Every failure is
// an INVALID_SPEC (or INVALID_EXPRESSION) coded error naming the knot and
// the offending step.
func Validate(s Spec) error {
	if err := errors.ValidateIdentifier("knot", s.ID); err != nil {
		return err
	}
	if len(s.Scheme) == 0 {
		return errors.New(errors.ErrCodeInvalidSpec, "knot %s: empty linking scheme", s.ID)
	}
	if s.KnotOp {
		return validateKnotOp(s)
	}
	if s.IsGeometryOnly() {
		return validateRef(s.ID, 0, "out", s.Scheme[0].Out)
	}

	for i, st := range s.Scheme {
		if err := validateRef(s.ID, i, "out", st.Out); err != nil {
			return err
		}
		if st.In == nil {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d has no in", s.ID, i)
		}
		if err := validateRef(s.ID, i, "in", *st.In); err != nil {
			return err
		}
		if st.Op != "" {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: op is only allowed in knotOp knots", s.ID, i)
		}
		if i == 0 && !st.Abstract {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: the first step must be an abstract join", s.ID)
		}

		sameLayer := st.In.Name == st.Out.Name
		switch {
		case st.IsInnerAgg() && !sameLayer:
			return errors.New(errors.ErrCodeInvalidSpec,
				"knot %s: step %d: INNERAGG requires in and out on the same layer (%s != %s)", s.ID, i, st.In.Name, st.Out.Name)
		case !st.IsInnerAgg() && sameLayer:
			return errors.New(errors.ErrCodeInvalidSpec,
				"knot %s: step %d: same-layer level changes must use INNERAGG, not %s", s.ID, i, st.Relation)
		case st.IsInnerAgg() && st.Abstract:
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: INNERAGG cannot be abstract", s.ID, i)
		case st.IsInnerAgg() && st.Operation == OpNone:
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: INNERAGG needs a reduction, got NONE", s.ID, i)
		case st.IsCrossLayer() && st.Operation == OpNone:
			return errors.New(errors.ErrCodeInvalidSpec,
				"knot %s: step %d: cross-layer joins need a reduction, got NONE", s.ID, i)
		case st.IsCrossLayer() && st.Relation == RelationUnspecified:
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: missing spatial_relation", s.ID, i)
		}

		// Non-abstract steps consume the running array, so they must read
		// exactly what the previous step produced.
		if i > 0 && !st.Abstract && *st.In != s.Scheme[i-1].Out {
			return errors.New(errors.ErrCodeInvalidSpec,
				"knot %s: step %d reads %s but step %d produced %s", s.ID, i, st.In, i-1, s.Scheme[i-1].Out)
		}
		if st.MaxDistance != nil && *st.MaxDistance < 0 {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: negative maxDistance", s.ID, i)
		}
	}
	return nil
}

func validateKnotOp(s Spec) error {
	for i, st := range s.Scheme {
		if st.Operation != OpNone {
			return errors.New(errors.ErrCodeInvalidSpec,
				"knot %s: step %d: knotOp steps must use operation NONE, got %s", s.ID, i, st.Operation)
		}
		if st.In == nil {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: knotOp steps need in", s.ID, i)
		}
		if st.Op == "" {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: knotOp steps need op", s.ID, i)
		}
		if st.In.Name == "" || st.Out.Name == "" {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: knotOp refs need knot names", s.ID, i)
		}
		if st.In.Name == s.ID || st.Out.Name == s.ID {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d references itself", s.ID, i)
		}
		if _, err := CompileOp(st, i); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidSpec, err, "knot %s: step %d", s.ID, i)
		}
	}
	return nil
}

// CompileOp compiles the expression of the i-th step of an operation knot.
// The slot order of the returned program is in, out, prevResult.
func CompileOp(st Step, i int) (*expr.Program, error) {
	refs, err := expr.References(st.Op)
	if err != nil {
		return nil, err
	}
	if i == 0 && slices.Contains(refs, PrevResult) {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "%s is not available on the first step", PrevResult)
	}
	return expr.Compile(st.Op, OpSlots(st))
}

// OpSlots returns the identifier order CompileOp binds: in, out, prevResult.
func OpSlots(st Step) []string {
	return []string{inName(st), st.Out.Name, PrevResult}
}

func validateRef(id string, i int, which string, r Ref) error {
	if r.Name == "" {
		return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: %s has no name", id, i, which)
	}
	if r.Level == LevelUnspecified {
		return errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d: %s has no level", id, i, which)
	}
	return nil
}

// ValidateSet validates every knot plus the constraints that span knots:
// unique ids, operation knots referencing existing knots, and no reference
// cycles between operation knots.
func ValidateSet(specs []Spec) error {
	byID := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if err := Validate(s); err != nil {
			return err
		}
		if _, dup := byID[s.ID]; dup {
			return errors.New(errors.ErrCodeInvalidSpec, "duplicate knot id %q", s.ID)
		}
		byID[s.ID] = s
	}
	for _, s := range specs {
		for _, ref := range s.KnotRefs() {
			if _, ok := byID[ref]; !ok {
				return errors.New(errors.ErrCodeInvalidSpec, "knot %s references unknown knot %q", s.ID, ref)
			}
		}
	}
	if cyc := findCycle(byID); cyc != nil {
		return errors.New(errors.ErrCodeInvalidSpec, "knotOp reference cycle: %v", cyc)
	}
	return nil
}

// findCycle runs a white/gray/black DFS over knotOp references and returns
// the first cycle found, or nil.
func findCycle(byID map[string]Spec) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(byID))
	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		path = append(path, id)
		for _, ref := range byID[id].KnotRefs() {
			switch color[ref] {
			case gray:
				start := slices.Index(path, ref)
				return append(slices.Clone(path[start:]), ref)
			case white:
				if c := visit(ref); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if color[id] == white {
			if c := visit(id); c != nil {
				return c
			}
		}
	}
	return nil
}
