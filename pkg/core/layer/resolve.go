package layer

import (
	"slices"

	"github.com/matzehuels/urbanknots/pkg/core/aggregate"
	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// GetAbstractDataFromLink walks scheme left to right and returns the
// function array at the level of the last step's out reference. A
// geometry-only scheme (one step without in) yields nil.
//
// The running array always addresses coordinates: OBJECTS results are
// broadcast over the out layer's object base coordinates before the next
// step reads them.
func (m *Manager) GetAbstractDataFromLink(scheme []linking.Step) ([]float64, error) {
	if len(scheme) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "empty linking scheme")
	}
	if len(scheme) == 1 && scheme[0].In == nil {
		return nil, nil
	}

	var values []float64
	for i, st := range scheme {
		if st.In == nil {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "step %d has no in", i)
		}
		out, err := m.Layer(st.Out.Name)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "step %d", i)
		}

		switch {
		case st.Abstract:
			values, err = m.abstractStep(out, st)
		case st.IsInnerAgg():
			if values == nil {
				err = errors.New(errors.ErrCodeInvalidSpec, "INNERAGG without a preceding step")
				break
			}
			values, err = out.InnerAggFunc(values, st.In.Level, st.Out.Level, st.Operation)
		default:
			values, err = m.crossStep(out, st, values)
		}
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "step %d (%s -> %s)", i, st.In, st.Out)
		}
		m.logger.Debug("step resolved", "step", i, "in", st.In.String(), "out", st.Out.String(), "values", len(values))
	}
	return values, nil
}

func (m *Manager) abstractStep(out Layer, st linking.Step) ([]float64, error) {
	jo, ok := out.Joins().Lookup(join.KeyFor(st))
	if !ok {
		return nil, errors.New(errors.ErrCodeJoinNotFound,
			"Joined objects not found: layer %s, %s %s (abstract)", out.ID(), st.Relation, st.In)
	}
	n, err := out.ElementCount(st.Out.Level)
	if err != nil {
		return nil, err
	}
	if len(jo.InValues) != n {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"abstract join %s on %s has %d values for %d elements", st.In.Name, out.ID(), len(jo.InValues), n)
	}
	if st.Out.Level == linking.LevelObjects {
		return out.Broadcast(jo.InValues)
	}
	return slices.Clone(jo.InValues), nil
}

func (m *Manager) crossStep(out Layer, st linking.Step, values []float64) ([]float64, error) {
	if st.In.Name == st.Out.Name {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "same-layer joins must use INNERAGG")
	}
	if st.Operation == linking.OpNone {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "cross-layer joins need a reduction, got NONE")
	}
	partner, err := m.Layer(st.In.Name)
	if err != nil {
		return nil, err
	}
	want, err := partner.LevelLen(st.In.Level)
	if err != nil {
		return nil, err
	}
	if len(values) != want {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"running array has %d values, %s needs %d", len(values), st.In, want)
	}

	jo, ok := out.Joins().Lookup(join.KeyFor(st))
	if !ok {
		return nil, errors.New(errors.ErrCodeJoinNotFound,
			"Joined objects not found: layer %s, %s %s", out.ID(), st.Relation, st.In)
	}
	n, err := out.ElementCount(st.Out.Level)
	if err != nil {
		return nil, err
	}
	if len(jo.InIds) != n {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"join %s on %s has %d entries for %d elements", st.In.Name, out.ID(), len(jo.InIds), n)
	}

	noMatch := m.noMatch
	if st.DefaultValue != nil {
		noMatch = *st.DefaultValue
	}
	perElement := make([]float64, n)
	misses := 0
	gathered := make([]float64, 0, 8)
	for e, ids := range jo.InIds {
		if len(ids) == 0 {
			perElement[e] = noMatch
			misses++
			continue
		}
		gathered = gathered[:0]
		for _, id := range ids {
			idx, err := partner.FunctionValueIndexOfID(id, st.In.Level)
			if err != nil {
				return nil, err
			}
			gathered = append(gathered, values[idx])
		}
		if perElement[e], err = aggregate.Reduce(st.Operation, gathered); err != nil {
			return nil, err
		}
	}
	if misses > 0 {
		m.logger.Debug("unmatched elements defaulted", "layer", out.ID(), "partner", partner.ID(),
			"unmatched", misses, "of", n, "value", noMatch)
	}

	if st.Out.Level == linking.LevelObjects {
		return out.Broadcast(perElement)
	}
	return perElement, nil
}
