package linking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

func ref(name string, lvl Level) *Ref { return &Ref{Name: name, Level: lvl} }

func abstractStep() Step {
	return Step{
		Out:      Ref{Name: "buildings", Level: LevelCoordinates3D},
		In:       ref("shadow", LevelCoordinates3D),
		Relation: RelationDirect,
		Abstract: true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{
			name: "single abstract step",
			spec: Spec{ID: "k", Scheme: []Step{abstractStep()}},
		},
		{
			name: "geometry only",
			spec: Spec{ID: "k", Scheme: []Step{{Out: Ref{Name: "buildings", Level: LevelObjects}}}},
		},
		{
			name: "abstract then innerAgg then cross",
			spec: Spec{ID: "k", Scheme: []Step{
				abstractStep(),
				{Out: Ref{"buildings", LevelObjects}, In: ref("buildings", LevelCoordinates3D), Relation: RelationInnerAgg, Operation: OpMax},
				{Out: Ref{"roads", LevelObjects}, In: ref("buildings", LevelObjects), Relation: RelationNearest, Operation: OpAvg},
			}},
		},
		{
			name:    "empty scheme",
			spec:    Spec{ID: "k"},
			wantErr: "empty linking scheme",
		},
		{
			name:    "bad id",
			spec:    Spec{ID: "1k", Scheme: []Step{abstractStep()}},
			wantErr: "knot",
		},
		{
			name: "first step not abstract",
			spec: Spec{ID: "k", Scheme: []Step{
				{Out: Ref{"roads", LevelObjects}, In: ref("buildings", LevelObjects), Relation: RelationNearest, Operation: OpAvg},
			}},
			wantErr: "first step must be an abstract join",
		},
		{
			name: "missing in",
			spec: Spec{ID: "k", Scheme: []Step{
				abstractStep(),
				{Out: Ref{"roads", LevelObjects}, Relation: RelationNearest, Operation: OpAvg},
			}},
			wantErr: "has no in",
		},
		{
			name: "innerAgg across layers",
			spec: Spec{ID: "k", Scheme: []Step{
				abstractStep(),
				{Out: Ref{"roads", LevelObjects}, In: ref("buildings", LevelCoordinates3D), Relation: RelationInnerAgg, Operation: OpMax},
			}},
			wantErr: "INNERAGG requires",
		},
		{
			name: "same layer without innerAgg",
			spec: Spec{ID: "k", Scheme: []Step{
				abstractStep(),
				{Out: Ref{"buildings", LevelObjects}, In: ref("buildings", LevelCoordinates3D), Relation: RelationIntersects, Operation: OpMax},
			}},
			wantErr: "must use INNERAGG",
		},
		{
			name: "cross layer with NONE",
			spec: Spec{ID: "k", Scheme: []Step{
				abstractStep(),
				{Out: Ref{"roads", LevelObjects}, In: ref("buildings", LevelCoordinates3D), Relation: RelationNearest},
			}},
			wantErr: "cross-layer joins need a reduction",
		},
		{
			name: "broken chain",
			spec: Spec{ID: "k", Scheme: []Step{
				abstractStep(),
				{Out: Ref{"roads", LevelObjects}, In: ref("buildings", LevelObjects), Relation: RelationNearest, Operation: OpMax},
			}},
			wantErr: "reads buildings@OBJECTS but step 0 produced buildings@COORDINATES3D",
		},
		{
			name: "missing level",
			spec: Spec{ID: "k", Scheme: []Step{
				{Out: Ref{Name: "buildings"}, In: ref("shadow", LevelCoordinates3D), Abstract: true},
			}},
			wantErr: "has no level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
			if errors.ClassOf(err) != errors.ClassSpecification {
				t.Errorf("ClassOf() = %v, want %v", errors.ClassOf(err), errors.ClassSpecification)
			}
		})
	}
}

func opStep(in, out, op string, operation Operation) Step {
	return Step{In: ref(in, LevelCoordinates3D), Out: Ref{out, LevelCoordinates3D}, Op: op, Operation: operation}
}

func TestValidateKnotOp(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{"ok", []Step{opStep("a", "b", "a * b", OpNone), opStep("a", "b", "prevResult + a", OpNone)}, ""},
		{"operation not none", []Step{opStep("a", "b", "a + b", OpSum)}, "operation NONE"},
		{"missing op", []Step{opStep("a", "b", "", OpNone)}, "need op"},
		{"missing in", []Step{{Out: Ref{"b", LevelCoordinates3D}, Op: "b"}}, "need in"},
		{"prevResult on first step", []Step{opStep("a", "b", "a + prevResult", OpNone)}, "prevResult is not available"},
		{"unknown identifier", []Step{opStep("a", "b", "a + c", OpNone)}, "unknown identifier"},
		{"self reference", []Step{opStep("op", "b", "op + b", OpNone)}, "references itself"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Spec{ID: "op", KnotOp: true, Scheme: tt.steps})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSet(t *testing.T) {
	a := Spec{ID: "a", Scheme: []Step{abstractStep()}}
	b := Spec{ID: "b", Scheme: []Step{abstractStep()}}
	sum := Spec{ID: "sum", KnotOp: true, Scheme: []Step{opStep("a", "b", "a + b", OpNone)}}

	if err := ValidateSet([]Spec{a, b, sum}); err != nil {
		t.Fatalf("ValidateSet() error = %v", err)
	}

	if err := ValidateSet([]Spec{a, a}); err == nil || !strings.Contains(err.Error(), "duplicate knot id") {
		t.Errorf("duplicate ids: error = %v", err)
	}

	if err := ValidateSet([]Spec{a, sum}); err == nil || !strings.Contains(err.Error(), "unknown knot") {
		t.Errorf("dangling ref: error = %v", err)
	}

	x := Spec{ID: "x", KnotOp: true, Scheme: []Step{opStep("a", "y", "a + y", OpNone)}}
	y := Spec{ID: "y", KnotOp: true, Scheme: []Step{opStep("a", "x", "a + x", OpNone)}}
	if err := ValidateSet([]Spec{a, x, y}); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("cycle: error = %v", err)
	}
}

func TestEnumText(t *testing.T) {
	for _, op := range Operations {
		b, err := op.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", op, err)
		}
		var got Operation
		if err := got.UnmarshalText(b); err != nil || got != op {
			t.Errorf("round trip %v = %v (err %v)", op, got, err)
		}
	}
	for _, l := range Levels {
		b, _ := l.MarshalText()
		var got Level
		if err := got.UnmarshalText(b); err != nil || got != l {
			t.Errorf("round trip %v = %v (err %v)", l, got, err)
		}
	}
	if _, err := ParseRelation("teleports"); err == nil {
		t.Error("ParseRelation(teleports) should fail")
	}
	if r, _ := ParseRelation("innerAgg"); r != RelationInnerAgg {
		t.Errorf("ParseRelation(innerAgg) = %v, want INNERAGG", r)
	}
}

func TestSpecJSON(t *testing.T) {
	data := `{
		"id": "shadowPerRoad",
		"linkingScheme": [
			{"out": {"name": "buildings", "level": "COORDINATES3D"},
			 "in": {"name": "shadow", "level": "COORDINATES3D"},
			 "abstract": true, "operation": "NONE", "spatial_relation": "DIRECT"},
			{"out": {"name": "buildings", "level": "OBJECTS"},
			 "in": {"name": "buildings", "level": "COORDINATES3D"},
			 "abstract": false, "operation": "AVG", "spatial_relation": "INNERAGG"},
			{"out": {"name": "roads", "level": "OBJECTS"},
			 "in": {"name": "buildings", "level": "OBJECTS"},
			 "abstract": false, "operation": "MAX", "spatial_relation": "NEAREST",
			 "maxDistance": 50, "defaultValue": -1}
		]
	}`
	var s Spec
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if err := Validate(s); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := s.Target(); got != (Ref{"roads", LevelObjects}) {
		t.Errorf("Target() = %v", got)
	}
	last := s.Scheme[2]
	if last.MaxDistance == nil || *last.MaxDistance != 50 || last.DefaultValue == nil || *last.DefaultValue != -1 {
		t.Errorf("optional fields not decoded: %+v", last)
	}
	if got := s.Layers(); len(got) != 2 || got[0] != "buildings" || got[1] != "roads" {
		t.Errorf("Layers() = %v, want [buildings roads]", got)
	}
}
