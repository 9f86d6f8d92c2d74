package layer

import (
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

var (
	lvlC  = linking.LevelCoordinates
	lvl3D = linking.LevelCoordinates3D
	lvlO  = linking.LevelObjects
)

func ref(name string, l linking.Level) *linking.Ref { return &linking.Ref{Name: name, Level: l} }

// fixture: "sensors" has two point clusters of sizes 2 and 3, "roads" has
// two polylines of two points each.
func fixture(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(ManagerOptions{})
	sensors := NewPoint("sensors", pointMesh(t, 2, 3))
	roads := NewLine("roads", pointMesh(t, 2, 2))
	for _, l := range []Layer{sensors, roads} {
		if err := m.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}

	st, err := join.NewTables([]join.Entry{{
		JoinedLayer:   join.JoinedLayer{Relation: linking.RelationDirect, LayerID: "temperature", Abstract: true, InLevel: lvl3D, OutLevel: lvl3D},
		JoinedObjects: join.JoinedObjects{InValues: []float64{10, 20, 1, 2, 3}},
	}, {
		JoinedLayer:   join.JoinedLayer{Relation: linking.RelationDirect, LayerID: "owners", Abstract: true, InLevel: lvlO, OutLevel: lvlO},
		JoinedObjects: join.JoinedObjects{InValues: []float64{7, 8}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateJoins("sensors", st); err != nil {
		t.Fatal(err)
	}

	rt, err := join.NewTables([]join.Entry{{
		JoinedLayer:   join.JoinedLayer{Relation: linking.RelationNearest, LayerID: "sensors", InLevel: lvlO, OutLevel: lvlO},
		JoinedObjects: join.JoinedObjects{InIds: [][]int{{0, 1}, nil}},
	}, {
		JoinedLayer:   join.JoinedLayer{Relation: linking.RelationDirect, LayerID: "traffic", Abstract: true, InLevel: lvlC, OutLevel: lvlC},
		JoinedObjects: join.JoinedObjects{InValues: []float64{1.5, -2, 3.25, 7}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateJoins("roads", rt); err != nil {
		t.Fatal(err)
	}
	return m
}

func temperatureStep() linking.Step {
	return linking.Step{Out: linking.Ref{Name: "sensors", Level: lvl3D}, In: ref("temperature", lvl3D), Relation: linking.RelationDirect, Abstract: true}
}

func maxStep() linking.Step {
	return linking.Step{Out: linking.Ref{Name: "sensors", Level: lvlO}, In: ref("sensors", lvl3D), Relation: linking.RelationInnerAgg, Operation: linking.OpMax}
}

func roadStep() linking.Step {
	return linking.Step{Out: linking.Ref{Name: "roads", Level: lvlO}, In: ref("sensors", lvlO), Relation: linking.RelationNearest, Operation: linking.OpAvg}
}

func TestResolveAbstractRoundTrip(t *testing.T) {
	m := fixture(t)
	step := linking.Step{Out: linking.Ref{Name: "roads", Level: lvlC}, In: ref("traffic", lvlC), Relation: linking.RelationDirect, Abstract: true}
	got, err := m.GetAbstractDataFromLink([]linking.Step{step})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{1.5, -2, 3.25, 7}; !slices.Equal(got, want) {
		t.Errorf("GetAbstractDataFromLink() = %v, want %v", got, want)
	}
}

func TestResolveAbstractObjectsBroadcast(t *testing.T) {
	m := fixture(t)
	step := linking.Step{Out: linking.Ref{Name: "sensors", Level: lvlO}, In: ref("owners", lvlO), Relation: linking.RelationDirect, Abstract: true}
	got, err := m.GetAbstractDataFromLink([]linking.Step{step})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{7, 7, 8, 8, 8}; !slices.Equal(got, want) {
		t.Errorf("GetAbstractDataFromLink() = %v, want %v", got, want)
	}
}

func TestResolveInnerAggMax(t *testing.T) {
	m := fixture(t)
	got, err := m.GetAbstractDataFromLink([]linking.Step{temperatureStep(), maxStep()})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{20, 20, 3, 3, 3}; !slices.Equal(got, want) {
		t.Errorf("GetAbstractDataFromLink() = %v, want %v", got, want)
	}
}

func TestResolveCrossLayer(t *testing.T) {
	m := fixture(t)
	scheme := []linking.Step{temperatureStep(), maxStep(), roadStep()}

	got, err := m.GetAbstractDataFromLink(scheme)
	if err != nil {
		t.Fatal(err)
	}
	// Road 0 matches both clusters (20 and 3); road 1 has no match.
	if want := []float64{11.5, 11.5, 0, 0}; !slices.Equal(got, want) {
		t.Errorf("GetAbstractDataFromLink() = %v, want %v", got, want)
	}

	def := -1.0
	scheme[2].DefaultValue = &def
	got, err = m.GetAbstractDataFromLink(scheme)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{11.5, 11.5, -1, -1}; !slices.Equal(got, want) {
		t.Errorf("with defaultValue = %v, want %v", got, want)
	}

	m2 := fixture(t)
	m2.noMatch = 42
	scheme[2].DefaultValue = nil
	got, _ = m2.GetAbstractDataFromLink(scheme)
	if got[3] != 42 {
		t.Errorf("NoMatchValue not applied: %v", got)
	}
}

func TestResolveGeometryOnly(t *testing.T) {
	m := fixture(t)
	got, err := m.GetAbstractDataFromLink([]linking.Step{{Out: linking.Ref{Name: "roads", Level: lvlO}}})
	if err != nil || got != nil {
		t.Errorf("GetAbstractDataFromLink() = %v, %v, want nil, nil", got, err)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		scheme []linking.Step
		code   errors.Code
		msg    string
	}{
		{
			name:   "join not found",
			scheme: []linking.Step{{Out: linking.Ref{Name: "sensors", Level: lvl3D}, In: ref("humidity", lvl3D), Abstract: true}},
			code:   errors.ErrCodeJoinNotFound,
			msg:    "Joined objects not found",
		},
		{
			name:   "unknown layer",
			scheme: []linking.Step{{Out: linking.Ref{Name: "rivers", Level: lvl3D}, In: ref("x", lvl3D), Abstract: true}},
			code:   errors.ErrCodeLayerNotFound,
		},
		{
			name: "same layer cross join",
			scheme: []linking.Step{temperatureStep(), {
				Out: linking.Ref{Name: "sensors", Level: lvlO}, In: ref("sensors", lvl3D), Relation: linking.RelationIntersects, Operation: linking.OpMax,
			}},
			code: errors.ErrCodeInvalidSpec,
		},
		{
			name: "cross join with NONE",
			scheme: []linking.Step{temperatureStep(), maxStep(), {
				Out: linking.Ref{Name: "roads", Level: lvlO}, In: ref("sensors", lvlO), Relation: linking.RelationNearest,
			}},
			code: errors.ErrCodeInvalidSpec,
		},
		{
			name: "no join at 3D level",
			scheme: []linking.Step{{
				Out: linking.Ref{Name: "roads", Level: lvl3D}, In: ref("traffic", lvl3D), Abstract: true, Relation: linking.RelationDirect,
			}},
			code: errors.ErrCodeJoinNotFound,
		},
		{
			name: "innerAgg to coordinates",
			scheme: []linking.Step{temperatureStep(), {
				Out: linking.Ref{Name: "sensors", Level: lvl3D}, In: ref("sensors", lvl3D), Relation: linking.RelationInnerAgg, Operation: linking.OpMax,
			}},
			code: errors.ErrCodeUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture(t).GetAbstractDataFromLink(tt.scheme)
			if !errors.Is(err, tt.code) {
				t.Fatalf("error = %v, want code %s", err, tt.code)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.msg)
			}
		})
	}
}

func opStep(in, out, op string) linking.Step {
	return linking.Step{In: ref(in, lvl3D), Out: linking.Ref{Name: out, Level: lvl3D}, Op: op}
}

func TestResolveKnotOp(t *testing.T) {
	m := NewManager(ManagerOptions{})
	knots := StaticKnots{"a": {1, 2, 3}, "b": {10, 20, 30}, "short": {1}}

	spec := linking.Spec{ID: "combo", KnotOp: true, Scheme: []linking.Step{
		opStep("a", "b", "a + b"),
		opStep("a", "b", "prevResult * a"),
	}}
	got, err := m.ResolveKnot(spec, knots)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{11, 44, 99}; !slices.Equal(got, want) {
		t.Errorf("ResolveKnot() = %v, want %v", got, want)
	}

	spec.Scheme = []linking.Step{opStep("a", "short", "a + short")}
	_, err = m.ResolveKnot(spec, knots)
	if !errors.Is(err, errors.ErrCodeDataIntegrity) || !strings.Contains(err.Error(), "All knots used in knotOp must have the same length") {
		t.Errorf("length mismatch error = %v", err)
	}

	spec.Scheme = []linking.Step{opStep("a", "b", "prevResult + a")}
	if _, err := m.ResolveKnot(spec, knots); !errors.Is(err, errors.ErrCodeInvalidSpec) {
		t.Errorf("prevResult on first step error = %v", err)
	}
}

func TestSourceResolvesReferencedKnots(t *testing.T) {
	m := fixture(t)
	specs := []linking.Spec{
		{ID: "temp", Scheme: []linking.Step{temperatureStep()}},
		{ID: "peak", Scheme: []linking.Step{temperatureStep(), maxStep()}},
		{ID: "excess", KnotOp: true, Scheme: []linking.Step{opStep("peak", "temp", "peak - temp")}},
	}
	got, err := m.Source(specs).KnotValues("excess")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{10, 0, 2, 1, 0}; !slices.Equal(got, want) {
		t.Errorf("KnotValues(excess) = %v, want %v", got, want)
	}
}
