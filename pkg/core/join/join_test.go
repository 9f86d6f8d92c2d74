package join

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

func TestTablesLookup(t *testing.T) {
	shadow := Entry{
		JoinedLayer:   JoinedLayer{Relation: linking.RelationDirect, LayerID: "shadow", Abstract: true, InLevel: linking.LevelCoordinates3D, OutLevel: linking.LevelCoordinates3D},
		JoinedObjects: JoinedObjects{InValues: []float64{1, 2, 3}},
	}
	roads := Entry{
		JoinedLayer:   JoinedLayer{Relation: linking.RelationNearest, LayerID: "roads", InLevel: linking.LevelObjects, OutLevel: linking.LevelObjects},
		JoinedObjects: JoinedObjects{InIds: [][]int{{0, 1}, nil}},
	}
	tables, err := NewTables([]Entry{shadow, roads})
	if err != nil {
		t.Fatal(err)
	}

	step := linking.Step{
		Out:      linking.Ref{Name: "buildings", Level: linking.LevelCoordinates3D},
		In:       &linking.Ref{Name: "shadow", Level: linking.LevelCoordinates3D},
		Relation: linking.RelationDirect,
		Abstract: true,
	}
	got, ok := tables.Lookup(KeyFor(step))
	if !ok || got.Len() != 3 {
		t.Fatalf("Lookup(shadow) = %v, %v", got, ok)
	}

	step.Abstract = false
	if _, ok := tables.Lookup(KeyFor(step)); ok {
		t.Error("Lookup matched despite different abstract flag")
	}

	// Replacing keeps the position.
	shadow.InValues = []float64{9}
	if err := tables.Add(shadow); err != nil {
		t.Fatal(err)
	}
	if tables.Len() != 2 || tables.Entries()[0].InValues[0] != 9 {
		t.Errorf("Add did not replace: %+v", tables.Entries())
	}
	if p := tables.Partners(); len(p) != 2 || p[0] != "shadow" || p[1] != "roads" {
		t.Errorf("Partners() = %v", p)
	}

	var nilTables *Tables
	if _, ok := nilTables.Lookup(KeyFor(step)); ok || nilTables.Len() != 0 {
		t.Error("nil Tables should be empty")
	}
}

func TestEntryValidate(t *testing.T) {
	lvl := linking.LevelObjects
	tests := []struct {
		name string
		e    Entry
	}{
		{"no layer", Entry{JoinedLayer: JoinedLayer{InLevel: lvl, OutLevel: lvl}}},
		{"no level", Entry{JoinedLayer: JoinedLayer{LayerID: "x"}}},
		{"both payloads", Entry{JoinedLayer{LayerID: "x", InLevel: lvl, OutLevel: lvl}, JoinedObjects{InValues: []float64{1}, InIds: [][]int{{1}}}}},
		{"abstract with ids", Entry{JoinedLayer{LayerID: "x", Abstract: true, InLevel: lvl, OutLevel: lvl}, JoinedObjects{InIds: [][]int{{1}}}}},
		{"physical with values", Entry{JoinedLayer{LayerID: "x", InLevel: lvl, OutLevel: lvl}, JoinedObjects{InValues: []float64{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.e.Validate(); !errors.Is(err, errors.ErrCodeDataIntegrity) {
				t.Errorf("Validate() = %v, want DATA_INTEGRITY", err)
			}
		})
	}
}

func TestEntryJSON(t *testing.T) {
	data := `{"spatial_relation":"NEAREST","layerId":"roads","abstract":false,
		"inLevel":"OBJECTS","outLevel":"COORDINATES3D","inIds":[[3],null,[1,2]]}`
	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatal(err)
	}
	if err := e.Validate(); err != nil {
		t.Fatal(err)
	}
	if e.InIds[1] != nil {
		t.Errorf("null inIds entry decoded as %v, want nil", e.InIds[1])
	}
	if e.Relation != linking.RelationNearest || e.OutLevel != linking.LevelCoordinates3D {
		t.Errorf("descriptor = %+v", e.JoinedLayer)
	}
}
