// Package pipeline provides the resolution pipeline for urbanknots.
//
// This package implements the complete load → resolve → render pipeline
// used by the CLI and the API. By centralizing this logic, both entry points
// build layers, cache knots and name artifacts the same way.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Build one mesh and layer per bundle layer and attach its joins
//  2. Resolve: Validate the knots and resolve every dirty one, reusing
//     cached arrays whose inputs have not changed
//  3. Render: Emit functions.json, buffers.json and the knot graph
//
// # Usage
//
//	p, err := project.Load("urbanknots.toml")
//	if err != nil {
//	    return err
//	}
//	bundle, err := pipeline.BundleFromProject(p)
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, bundle, pipeline.Options{Formats: []string{"json", "svg"}})
//	if err != nil {
//	    return err
//	}
//	functions := result.Artifacts[pipeline.ArtifactFunctions]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/urbanknots/pkg/core/knot"
	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/core/mesh"
	"github.com/matzehuels/urbanknots/pkg/errors"
	"github.com/matzehuels/urbanknots/pkg/project"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultNoMatchValue is what cross-layer joins yield for elements
	// without partners.
	DefaultNoMatchValue = layer.DefaultNoMatchValue

	// DefaultNonManifold is the non-manifold edge policy.
	DefaultNonManifold = "reject"

	// DefaultParallel bounds concurrent knot resolution.
	DefaultParallel = knot.DefaultParallel
)

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// DefaultFormats are rendered when Options.Formats is empty.
var DefaultFormats = []string{FormatJSON}

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// Artifact names, keyed in Result.Artifacts.
const (
	ArtifactFunctions = "functions.json"
	ArtifactBuffers   = "buffers.json"
	ArtifactDOT       = "knots.dot"
	ArtifactSVG       = "knots.svg"
	ArtifactPNG       = "knots.png"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline. Zero engine fields
// fall back to the bundle's engine settings, then to the defaults.
// This struct supports JSON serialization for API requests.
type Options struct {
	NoMatchValue *float64 `json:"no_match_value,omitempty"`
	NonManifold  string   `json:"non_manifold,omitempty"`
	Parallel     int      `json:"parallel,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // Show levels on knot graph edges

	// Refresh bypasses cached meshes and knots.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Document holds the live layers and knots.
	Document *session.Document

	// Artifacts contains rendered outputs keyed by artifact name.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Layers      int
	Vertices    int
	Knots       int
	LoadTime    time.Duration
	ResolveTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	MeshHits  int  // Layers whose features came from cache
	KnotHits  int  // Knots whose arrays came from cache
	RenderHit bool // Whether all graph artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: json, dot, svg, png)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ApplyEngine fills unset engine options from a project's engine block.
func (o *Options) ApplyEngine(e project.Engine) {
	if o.NoMatchValue == nil && e.NoMatchValue != nil {
		v := *e.NoMatchValue
		o.NoMatchValue = &v
	}
	if o.NonManifold == "" {
		o.NonManifold = e.NonManifold
	}
	if o.Parallel == 0 {
		o.Parallel = e.Parallel
	}
}

// ValidateAndSetDefaults checks option values and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.NoMatchValue == nil {
		v := DefaultNoMatchValue
		o.NoMatchValue = &v
	}
	if o.NonManifold == "" {
		o.NonManifold = DefaultNonManifold
	}
	if _, err := mesh.ParseNonManifoldPolicy(o.NonManifold); err != nil {
		return err
	}
	if o.Parallel < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "parallel must not be negative")
	}
	if o.Parallel == 0 {
		o.Parallel = DefaultParallel
	}
	if len(o.Formats) == 0 {
		o.Formats = DefaultFormats
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Policy returns the parsed non-manifold policy.
func (o *Options) Policy() mesh.NonManifoldPolicy {
	p, _ := mesh.ParseNonManifoldPolicy(o.NonManifold)
	return p
}

// GraphFormats returns the requested knot graph formats.
func (o *Options) GraphFormats() []string {
	var out []string
	for _, f := range o.Formats {
		if f != FormatJSON {
			out = append(out, f)
		}
	}
	return out
}

// WantsJSON reports whether functions.json and buffers.json are requested.
func (o *Options) WantsJSON() bool {
	for _, f := range o.Formats {
		if f == FormatJSON {
			return true
		}
	}
	return false
}
