package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/urbanknots/pkg/core/knot"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
)

const testProject = `
name = "cli-test"

[[layers]]
id = "sensors"
kind = "point"
features = "sensors.json"
joins = "sensors.joins.json"

[[knots]]
id = "noise"
[[knots.linkingScheme]]
out = { name = "sensors", level = "COORDINATES3D" }
in = { name = "noise", level = "COORDINATES3D" }
spatial_relation = "DIRECT"
abstract = true
`

const testJoins = `[{"spatial_relation": "DIRECT", "layerId": "noise", "abstract": true,
  "inLevel": "COORDINATES3D", "outLevel": "COORDINATES3D", "inValues": [40, 55, 70]}]`

// writeProject lays out a one-layer project in a temp dir and returns the
// path of its project file.
func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"urbanknots.toml":    testProject,
		"sensors.json":       `{"features":[{"coordinates":[0,0,0,1,0,0,2,0,0]}]}`,
		"sensors.joins.json": testJoins,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "urbanknots.toml")
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestResolveCommand(t *testing.T) {
	path := writeProject(t)
	out := filepath.Join(t.TempDir(), "artifacts")

	if err := runCLI(t, "resolve", path, "-o", out, "-f", "json,dot"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for _, name := range []string{pipeline.ArtifactFunctions, pipeline.ArtifactBuffers, pipeline.ArtifactDOT} {
		data, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Errorf("%s not written: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}

	functions, _ := os.ReadFile(filepath.Join(out, pipeline.ArtifactFunctions))
	if !strings.Contains(string(functions), `"noise"`) {
		t.Errorf("functions.json does not mention the knot:\n%s", functions)
	}
}

func TestResolveCommandErrors(t *testing.T) {
	path := writeProject(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing project", []string{"resolve", filepath.Join(t.TempDir(), "nope.toml")}},
		{"bad format", []string{"resolve", path, "-f", "pdf"}},
		{"bad policy", []string{"resolve", path, "--no-cache", "--non-manifold", "ignore"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runCLI(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGraphCommand(t *testing.T) {
	path := writeProject(t)
	out := filepath.Join(t.TempDir(), "graph.dot")

	if err := runCLI(t, "graph", path, "-f", "dot", "-o", out); err != nil {
		t.Fatalf("graph: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "digraph") {
		t.Errorf("graph output is not DOT:\n%s", data)
	}

	if err := runCLI(t, "graph", path, "-f", "json"); err == nil {
		t.Error("graph accepted json")
	}
}

func loadTestProject(t *testing.T) (*pipeline.Runner, *pipeline.Bundle) {
	t.Helper()
	_, b, err := loadBundle(writeProject(t))
	if err != nil {
		t.Fatalf("loadBundle: %v", err)
	}
	return pipeline.NewRunner(nil, nil, nil), b
}

func TestMeshTable(t *testing.T) {
	runner, b := loadTestProject(t)
	opts := pipeline.Options{}
	opts.ApplyEngine(b.Engine)

	loaded, err := runner.Load(context.Background(), b, opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := meshTable(loaded.Manager.Layers())
	for _, want := range []string{"Layer", "Non-manifold", "sensors", "point"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestKnotListModel(t *testing.T) {
	runner, b := loadTestProject(t)
	result, err := runner.Execute(context.Background(), b, pipeline.Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	m := NewKnotListModel(result.Document.Knots)
	if len(m.Statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(m.Statuses))
	}

	view := m.View()
	for _, want := range []string{"noise", "sensors", "[40, 55, 70]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := next.(KnotListModel).Cursor; got != 0 {
		t.Errorf("Cursor after down on last row = %d, want 0", got)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("q did not quit")
	}
}

func TestPreviewArray(t *testing.T) {
	tests := []struct {
		values []float64
		want   string
	}{
		{nil, "geometry only"},
		{[]float64{}, "[]"},
		{[]float64{1, 2.5}, "[1, 2.5]"},
		{[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "[1, 2, 3, 4, 5, 6, 7, 8, … 2 more]"},
	}
	for _, tt := range tests {
		if got := previewArray(tt.values); got != tt.want {
			t.Errorf("previewArray(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}

func TestFormatRange(t *testing.T) {
	if got := formatRange(knot.Status{}); got != "—" {
		t.Errorf("formatRange(empty) = %q, want —", got)
	}
	if got := formatRange(knot.Status{Len: 3, Min: 40, Max: 70}); got != "40 … 70" {
		t.Errorf("formatRange = %q, want %q", got, "40 … 70")
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "cached" {
		t.Errorf("formatDuration(0) = %q, want cached", got)
	}
	if got := formatDuration(1500 * time.Microsecond); got != "1.5ms" {
		t.Errorf("formatDuration(1.5ms) = %q, want 1.5ms", got)
	}
}

func TestStatsLine(t *testing.T) {
	got := statsLine(1, 3, 2, false)
	for _, want := range []string{"1 layer", "3 vertices", "2 knots", iconFresh} {
		if !strings.Contains(got, want) {
			t.Errorf("statsLine missing %q: %q", want, got)
		}
	}
	if !strings.Contains(statsLine(2, 1, 1, true), iconCached) {
		t.Error("cached run not marked cached")
	}
}
