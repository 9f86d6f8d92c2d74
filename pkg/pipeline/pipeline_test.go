package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/urbanknots/pkg/cache"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/core/mesh"
	uio "github.com/matzehuels/urbanknots/pkg/io"
	"github.com/matzehuels/urbanknots/pkg/project"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"dot", false},
		{"svg", false},
		{"png", false},
		{"pdf", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if *opts.NoMatchValue != DefaultNoMatchValue {
		t.Errorf("NoMatchValue = %v, want %v", *opts.NoMatchValue, DefaultNoMatchValue)
	}
	if opts.NonManifold != DefaultNonManifold || opts.Policy() != mesh.NonManifoldReject {
		t.Errorf("NonManifold = %q", opts.NonManifold)
	}
	if opts.Parallel != DefaultParallel {
		t.Errorf("Parallel = %d, want %d", opts.Parallel, DefaultParallel)
	}
	if !opts.WantsJSON() || len(opts.GraphFormats()) != 0 {
		t.Errorf("Formats = %v, want json only", opts.Formats)
	}
	if opts.Logger == nil {
		t.Error("Logger not set")
	}

	// Idempotent
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call: %v", err)
	}
}

func TestOptionsRejects(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"policy", Options{NonManifold: "ignore"}},
		{"parallel", Options{Parallel: -1}},
		{"format", Options{Formats: []string{"pdf"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyEngine(t *testing.T) {
	noMatch := -1.0
	engine := project.Engine{NoMatchValue: &noMatch, NonManifold: "tolerate", Parallel: 2}

	var opts Options
	opts.ApplyEngine(engine)
	if *opts.NoMatchValue != -1 || opts.NonManifold != "tolerate" || opts.Parallel != 2 {
		t.Errorf("engine not applied: %+v", opts)
	}

	explicit := 7.0
	opts = Options{NoMatchValue: &explicit, NonManifold: "reject", Parallel: 8}
	opts.ApplyEngine(engine)
	if *opts.NoMatchValue != 7 || opts.NonManifold != "reject" || opts.Parallel != 8 {
		t.Errorf("explicit options overridden: %+v", opts)
	}
}

func TestGraphArtifactName(t *testing.T) {
	for format, want := range map[string]string{
		FormatDOT: ArtifactDOT,
		FormatSVG: ArtifactSVG,
		FormatPNG: ArtifactPNG,
	} {
		if got := GraphArtifactName(format); got != want {
			t.Errorf("GraphArtifactName(%q) = %q, want %q", format, got, want)
		}
	}
}

const sensorJoins = `[{"spatial_relation": "DIRECT", "layerId": "noise", "abstract": true,
  "inLevel": "COORDINATES3D", "outLevel": "COORDINATES3D", "inValues": [40, 55, 70]}]`

func testBundle() *Bundle {
	lvl := linking.LevelCoordinates3D
	return &Bundle{
		Name: "test",
		Layers: []LayerInput{{
			ID:       "sensors",
			Kind:     "point",
			Features: json.RawMessage(`{"features":[{"coordinates":[0,0,0,1,0,0,2,0,0]}]}`),
			Joins:    json.RawMessage(sensorJoins),
		}},
		Knots: []linking.Spec{{ID: "noise", Scheme: []linking.Step{{
			Out:      linking.Ref{Name: "sensors", Level: lvl},
			In:       &linking.Ref{Name: "noise", Level: lvl},
			Relation: linking.RelationDirect,
			Abstract: true,
		}}}},
	}
}

func TestBundleValidate(t *testing.T) {
	if err := testBundle().Validate(); err != nil {
		t.Fatalf("valid bundle rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{"no layers", func(b *Bundle) { b.Layers = nil }},
		{"bad id", func(b *Bundle) { b.Layers[0].ID = "not valid!" }},
		{"duplicate", func(b *Bundle) { b.Layers = append(b.Layers, b.Layers[0]) }},
		{"bad kind", func(b *Bundle) { b.Layers[0].Kind = "volcano" }},
		{"no features", func(b *Bundle) { b.Layers[0].Features = nil }},
		{"duplicate knot", func(b *Bundle) { b.Knots = append(b.Knots, b.Knots[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBundle()
			tt.mutate(b)
			if err := b.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	defer runner.Close()

	opts := Options{Formats: []string{FormatJSON, FormatDOT}}
	first, err := runner.Execute(ctx, testBundle(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.Stats.Layers != 1 || first.Stats.Vertices != 3 || first.Stats.Knots != 1 {
		t.Errorf("Stats = %+v", first.Stats)
	}
	if first.CacheInfo.MeshHits != 0 || first.CacheInfo.KnotHits != 0 || first.CacheInfo.RenderHit {
		t.Errorf("first run CacheInfo = %+v, want all misses", first.CacheInfo)
	}

	var functions uio.FunctionsFile
	if err := json.Unmarshal(first.Artifacts[ArtifactFunctions], &functions); err != nil {
		t.Fatalf("functions.json: %v", err)
	}
	if len(functions.Knots) != 1 || len(functions.Knots[0].Values) != 3 || functions.Knots[0].Values[2] != 70 {
		t.Errorf("functions = %+v", functions)
	}
	if _, ok := first.Artifacts[ArtifactBuffers]; !ok {
		t.Error("buffers.json missing")
	}
	if dot := string(first.Artifacts[ArtifactDOT]); !strings.Contains(dot, `"knot:noise"`) {
		t.Errorf("knots.dot missing knot node:\n%s", dot)
	}

	second, err := runner.Execute(ctx, testBundle(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second.CacheInfo.MeshHits != 1 || second.CacheInfo.KnotHits != 1 || !second.CacheInfo.RenderHit {
		t.Errorf("second run CacheInfo = %+v, want all hits", second.CacheInfo)
	}
	values, err := second.Document.Knots.KnotValues("noise")
	if err != nil || len(values) != 3 || values[0] != 40 {
		t.Errorf("cached knot values = %v, %v", values, err)
	}

	opts.Refresh = true
	third, err := runner.Execute(ctx, testBundle(), opts)
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheInfo.MeshHits != 0 || third.CacheInfo.KnotHits != 0 {
		t.Errorf("refresh CacheInfo = %+v, want misses", third.CacheInfo)
	}
}

func TestExecuteInvalidatesOnJoinChange(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)

	if _, err := runner.Execute(ctx, testBundle(), Options{}); err != nil {
		t.Fatal(err)
	}

	b := testBundle()
	b.Layers[0].Joins = json.RawMessage(strings.Replace(sensorJoins, "70", "90", 1))
	result, err := runner.Execute(ctx, b, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.CacheInfo.MeshHits != 1 {
		t.Errorf("MeshHits = %d, geometry did not change", result.CacheInfo.MeshHits)
	}
	if result.CacheInfo.KnotHits != 0 {
		t.Errorf("KnotHits = %d, joins changed", result.CacheInfo.KnotHits)
	}
	values, _ := result.Document.Knots.KnotValues("noise")
	if len(values) != 3 || values[2] != 90 {
		t.Errorf("values = %v, want fresh join data", values)
	}
}

func TestExecuteKnotFailure(t *testing.T) {
	b := testBundle()
	b.Knots[0].Scheme[0].Out.Name = "missing"
	if _, err := NewRunner(nil, nil, nil).Execute(context.Background(), b, Options{}); err == nil {
		t.Error("knot on a missing layer should fail the run")
	}
}

func TestLoadSharedCentroid(t *testing.T) {
	b := testBundle()
	b.Engine.Centroid = &[3]float64{10, 20, 0}
	own := b.Layers[0]
	own.ID = "stations"
	own.Joins = nil
	own.Centroid = &[3]float64{1, 2, 0}
	b.Layers = append(b.Layers, own)

	loaded, err := NewRunner(nil, nil, nil).Load(context.Background(), b, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for id, want := range map[string][3]float64{
		"sensors":  {10, 20, 0},
		"stations": {1, 2, 0},
	} {
		l, err := loaded.Manager.Layer(id)
		if err != nil {
			t.Fatal(err)
		}
		if got := l.Mesh().Centroid(); got != want {
			t.Errorf("%s centroid = %v, want %v", id, got, want)
		}
	}
	if b.Layers[0].Centroid != nil {
		t.Error("Load modified the bundle")
	}
}
