package knotgraph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/matzehuels/urbanknots/pkg/core/linking"
)

const lvl3D = linking.LevelCoordinates3D

func specs() []linking.Spec {
	shade := linking.Spec{ID: "shade", Scheme: []linking.Step{
		{
			Out:      linking.Ref{Name: "buildings", Level: lvl3D},
			In:       &linking.Ref{Name: "shadow", Level: lvl3D},
			Relation: linking.RelationDirect,
			Abstract: true,
		},
		{
			Out:       linking.Ref{Name: "roads", Level: linking.LevelObjects},
			In:        &linking.Ref{Name: "buildings", Level: linking.LevelObjects},
			Relation:  linking.RelationNearest,
			Operation: linking.OpAvg,
		},
	}}
	double := linking.Spec{ID: "double", KnotOp: true, Scheme: []linking.Step{{
		In:  &linking.Ref{Name: "shade", Level: linking.LevelObjects},
		Out: linking.Ref{Name: "shade", Level: linking.LevelObjects},
		Op:  "shade * 2",
	}}}
	return []linking.Spec{shade, double}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(specs(), Options{LayerKinds: map[string]string{"buildings": "building", "roads": "line"}})

	for _, want := range []string{
		"digraph knots",
		`"layer:buildings" [label="buildings\n(building)"`,
		`"data:shadow" [label="shadow", shape=note`,
		`"data:shadow" -> "layer:buildings" [label="1 DIRECT"`,
		`"layer:buildings" -> "layer:roads" [label="2 NEAREST AVG"`,
		`"layer:roads" -> "knot:shade" [style=dashed`,
		`"knot:shade" -> "knot:double"`,
		`xlabel="shade * 2"`,
		`fillcolor="#fff4d6"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %s\n%s", want, dot)
		}
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(specs(), Options{Detailed: true})
	if !strings.Contains(dot, "OBJECTS → OBJECTS") {
		t.Errorf("detailed labels missing levels:\n%s", dot)
	}
	if strings.Contains(dot, `"layer:shadow"`) {
		t.Error("abstract partner drawn as a layer")
	}
}

func TestRenderDOTPassthrough(t *testing.T) {
	got, err := Render(context.Background(), "digraph {}", FormatDOT)
	if err != nil || string(got) != "digraph {}" {
		t.Errorf("Render(dot) = %q, %v", got, err)
	}
	if _, err := Render(context.Background(), "digraph {}", "gif"); err == nil {
		t.Error("Render(gif) should fail")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="x"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 100.00 50.00" width="100" height="50"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("normalizeViewBox without viewBox = %s", got)
	}
}

func ExampleToDOT() {
	dot := ToDOT(specs()[:1], Options{})
	for _, line := range strings.Split(dot, "\n") {
		if strings.Contains(line, "->") {
			fmt.Println(strings.TrimSpace(line))
		}
	}
	// Output:
	// "data:shadow" -> "layer:buildings" [label="1 DIRECT", color="#1f77b4", fontcolor="#1f77b4"];
	// "layer:buildings" -> "layer:roads" [label="2 NEAREST AVG", color="#1f77b4", fontcolor="#1f77b4"];
	// "layer:roads" -> "knot:shade" [style=dashed, color="#1f77b4"];
}
