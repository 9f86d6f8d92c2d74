package errors

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "shadow", false},
		{"valid with dash", "sky-view", false},
		{"valid with underscore", "_tmp_1", false},
		{"valid camel", "buildingsShadow", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 200), true},
		{"leading digit", "1knot", true},
		{"space", "my knot", true},
		{"dot", "a.b", true},
		{"trailing dash", "sky-", true},
		{"dash before digit", "floor-2", true},
		{"reserved prevResult", "prevResult", true},
		{"reserved max", "max", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier("knot", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidSpec) {
				t.Errorf("ValidateIdentifier(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidSpec)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple file", "buildings.json", false},
		{"nested", "layers/buildings.geojson", false},

		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "layers/../../secret", true},
		{"backslash", "layers\\a.json", true},
		{"null byte", "a\x00.json", true},
		{"too long", strings.Repeat("a", 600), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
