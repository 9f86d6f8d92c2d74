package knot

import (
	"slices"
	"time"

	"github.com/matzehuels/urbanknots/pkg/core/linking"
)

// Knot is one resolved (or pending) knot of a document.
type Knot struct {
	Spec linking.Spec

	// Target is where the values are rendered. For operation knots it is
	// inherited from the knot named by the last step's out ref.
	Target linking.Ref

	values   []float64
	dirty    bool
	err      error
	duration time.Duration
}

// Values returns the last resolved array. It is nil for geometry-only knots
// and for knots that were never resolved.
func (k *Knot) Values() []float64 { return k.values }

// Dirty reports whether the knot must be recomputed.
func (k *Knot) Dirty() bool { return k.dirty }

// Err returns the error of the last recompute, if any.
func (k *Knot) Err() error { return k.err }

// Status is a snapshot of one knot, safe to hand out of the Set.
type Status struct {
	ID       string
	Target   linking.Ref
	KnotOp   bool
	Dirty    bool
	Len      int
	Min, Max float64
	Duration time.Duration
	Err      error
}

func (k *Knot) status() Status {
	st := Status{
		ID:       k.Spec.ID,
		Target:   k.Target,
		KnotOp:   k.Spec.KnotOp,
		Dirty:    k.dirty,
		Len:      len(k.values),
		Duration: k.duration,
		Err:      k.err,
	}
	if len(k.values) > 0 {
		st.Min, st.Max = slices.Min(k.values), slices.Max(k.values)
	}
	return st
}
