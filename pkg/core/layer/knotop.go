package layer

import (
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// KnotSource supplies the resolved values of other knots to operation
// knots.
type KnotSource interface {
	KnotValues(id string) ([]float64, error)
}

// StaticKnots is a KnotSource over already-resolved arrays.
type StaticKnots map[string][]float64

func (s StaticKnots) KnotValues(id string) ([]float64, error) {
	v, ok := s[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", id)
	}
	return v, nil
}

// ResolveKnot resolves spec: operation knots through knots, everything else
// through GetAbstractDataFromLink.
func (m *Manager) ResolveKnot(spec linking.Spec, knots KnotSource) ([]float64, error) {
	if spec.KnotOp {
		return m.ResolveKnotOp(spec, knots)
	}
	return m.GetAbstractDataFromLink(spec.Scheme)
}

// ResolveKnotOp evaluates an operation knot. All referenced knots must
// resolve to arrays of the same length; each step's expression is evaluated
// per index with the values of its in and out knots and, after the first
// step, the previous step's result bound to prevResult.
func (m *Manager) ResolveKnotOp(spec linking.Spec, knots KnotSource) ([]float64, error) {
	if !spec.KnotOp {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "knot %s is not a knotOp knot", spec.ID)
	}
	if knots == nil {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "knot %s: no knot source", spec.ID)
	}

	vals := make(map[string][]float64)
	n := -1
	for _, ref := range spec.KnotRefs() {
		v, err := knots.KnotValues(ref)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "knot %s", spec.ID)
		}
		if n >= 0 && len(v) != n {
			return nil, errors.New(errors.ErrCodeDataIntegrity,
				"knot %s: All knots used in knotOp must have the same length (%d != %d)", spec.ID, len(v), n)
		}
		n = len(v)
		vals[ref] = v
	}

	var prev []float64
	slots := make([]float64, 3)
	for i, st := range spec.Scheme {
		if st.In == nil {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "knot %s: step %d has no in", spec.ID, i)
		}
		prog, err := linking.CompileOp(st, i)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSpec, err, "knot %s: step %d", spec.ID, i)
		}
		a, b := vals[st.In.Name], vals[st.Out.Name]
		res := make([]float64, n)
		for j := range res {
			slots[0], slots[1], slots[2] = a[j], b[j], 0
			if prev != nil {
				slots[2] = prev[j]
			}
			res[j] = prog.EvalSlots(slots)
		}
		prev = res
	}
	m.logger.Debug("knotOp resolved", "knot", spec.ID, "steps", len(spec.Scheme), "values", n)
	return prev, nil
}

// Source returns a KnotSource that resolves specs on demand through m,
// memoizing each knot once. Reference cycles fail with INVALID_SPEC.
func (m *Manager) Source(specs []linking.Spec) KnotSource {
	s := &specSource{m: m, specs: make(map[string]linking.Spec, len(specs)),
		done: make(map[string][]float64), active: make(map[string]bool)}
	for _, sp := range specs {
		s.specs[sp.ID] = sp
	}
	return s
}

type specSource struct {
	m      *Manager
	specs  map[string]linking.Spec
	done   map[string][]float64
	active map[string]bool
}

func (s *specSource) KnotValues(id string) ([]float64, error) {
	if v, ok := s.done[id]; ok {
		return v, nil
	}
	spec, ok := s.specs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", id)
	}
	if s.active[id] {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "knot %s references itself through knotOp", id)
	}
	s.active[id] = true
	defer delete(s.active, id)

	v, err := s.m.ResolveKnot(spec, s)
	if err != nil {
		return nil, err
	}
	s.done[id] = v
	return v, nil
}
