package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/urbanknots/pkg/cache"
	"github.com/matzehuels/urbanknots/pkg/core/knot"
	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/core/mesh"
	uio "github.com/matzehuels/urbanknots/pkg/io"
	"github.com/matzehuels/urbanknots/pkg/observability"
	"github.com/matzehuels/urbanknots/pkg/render/knotgraph"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different bundles.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Loaded is the output of the load stage.
type Loaded struct {
	Manager *layer.Manager
	// Hashes holds one content hash per layer covering its geometry, build
	// options and joins. Knot cache keys are derived from them.
	Hashes   map[string]string
	MeshHits int
}

// Execute runs the complete load → resolve → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, b *Bundle, opts Options) (*Result, error) {
	opts.ApplyEngine(b.Engine)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	loaded, err := r.Load(ctx, b, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Layers = len(b.Layers)
	for _, l := range loaded.Manager.Layers() {
		result.Stats.Vertices += l.Mesh().NumVertices()
	}
	result.CacheInfo.MeshHits = loaded.MeshHits

	r.Logger.Info("loaded layers",
		"layers", result.Stats.Layers,
		"vertices", result.Stats.Vertices,
		"duration", result.Stats.LoadTime)

	// Stage 2: Resolve
	resolveStart := time.Now()
	doc, knotHits, err := r.ResolveWithCacheInfo(ctx, b.Name, loaded, b.Knots, opts)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	result.Document = doc
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Stats.Knots = doc.Knots.Len()
	result.CacheInfo.KnotHits = knotHits

	r.Logger.Info("resolved knots",
		"knots", result.Stats.Knots,
		"cached", knotHits,
		"duration", result.Stats.ResolveTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Load builds the mesh and layer of every bundle layer. Decoded features
// are cached, so GeoJSON conversion only runs when the input changes.
func (r *Runner) Load(ctx context.Context, b *Bundle, opts Options) (*Loaded, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	m := layer.NewManager(layer.ManagerOptions{NoMatchValue: *opts.NoMatchValue, Logger: opts.Logger})
	loaded := &Loaded{Manager: m, Hashes: make(map[string]string, len(b.Layers))}
	hooks := observability.Pipeline()

	for _, in := range b.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if in.Centroid == nil && b.Engine.Centroid != nil {
			c := *b.Engine.Centroid
			in.Centroid = &c
		}
		hooks.OnLoadStart(ctx, in.ID, string(in.Kind))
		start := time.Now()
		l, key, hit, err := r.loadLayer(ctx, in, opts)
		var vertices int
		if err == nil {
			vertices = l.Mesh().NumVertices()
		}
		hooks.OnLoadComplete(ctx, in.ID, vertices, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", in.ID, err)
		}
		if hit {
			loaded.MeshHits++
		}
		if err := m.AddLayer(l); err != nil {
			return nil, err
		}

		tables, err := in.joins()
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", in.ID, err)
		}
		if err := m.UpdateJoins(in.ID, tables); err != nil {
			return nil, err
		}
		loaded.Hashes[in.ID], _ = cache.HashJSON([]string{key, cache.Hash(in.Joins)})

		st := l.Mesh().Stats()
		opts.Logger.Debug("layer loaded",
			"layer", in.ID,
			"kind", in.Kind,
			"components", st.Components,
			"vertices", st.Vertices,
			"triangles", st.Triangles,
			"cached", hit)
	}
	return loaded, nil
}

// loadLayer returns the built layer and its mesh cache key.
func (r *Runner) loadLayer(ctx context.Context, in LayerInput, opts Options) (layer.Layer, string, bool, error) {
	featuresHash, err := cache.HashJSON(struct {
		Data          string  `json:"data"`
		GeoJSON       bool    `json:"geojson"`
		Simplify      float64 `json:"simplify"`
		DefaultHeight float64 `json:"default_height"`
	}{cache.Hash(in.Features), in.GeoJSON, in.Simplify, in.DefaultHeight})
	if err != nil {
		return nil, "", false, err
	}
	keyOpts := cache.MeshKeyOpts{
		Kind:             string(in.Kind),
		NonManifold:      opts.NonManifold,
		RecomputeNormals: in.RecomputeNormals,
	}
	if in.Centroid != nil {
		keyOpts.Centroid = *in.Centroid
	}
	key := r.Keyer.MeshKey(featuresHash, keyOpts)

	ff, hit := r.cachedFeatures(ctx, key, opts)
	if ff == nil {
		if ff, err = in.features(); err != nil {
			return nil, "", false, err
		}
		if data, err := json.Marshal(ff); err == nil {
			r.store(ctx, "mesh", key, data, cache.TTLMesh)
		}
	}

	var centroid [3]float64
	if ff.Centroid != nil {
		centroid = *ff.Centroid
	}
	ms := mesh.New(opts.Policy())
	if err := ms.Load(ff.Features, in.RecomputeNormals, centroid); err != nil {
		return nil, "", false, err
	}
	l, err := layer.New(in.Kind, in.ID, ms)
	if err != nil {
		return nil, "", false, err
	}
	return l, key, hit, nil
}

func (r *Runner) cachedFeatures(ctx context.Context, key string, opts Options) (*uio.FeatureFile, bool) {
	if opts.Refresh {
		return nil, false
	}
	data, ok := r.lookup(ctx, "mesh", key)
	if !ok {
		return nil, false
	}
	var ff uio.FeatureFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, false
	}
	return &ff, true
}

// ResolveWithCacheInfo creates a document over loaded, adds specs and
// resolves every knot. It returns how many knots came from cache.
func (r *Runner) ResolveWithCacheInfo(ctx context.Context, name string, loaded *Loaded, specs []linking.Spec, opts Options) (*session.Document, int, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, 0, err
	}
	r.applyLogger(&opts)

	doc := session.NewDocument(name, loaded.Manager, knot.Options{Parallel: opts.Parallel, Logger: opts.Logger})
	if err := doc.Knots.Add(specs...); err != nil {
		return nil, 0, err
	}
	keys, err := r.knotKeys(specs, loaded.Hashes, *opts.NoMatchValue)
	if err != nil {
		return nil, 0, err
	}

	hits := 0
	if !opts.Refresh {
		for _, sp := range specs {
			data, ok := r.lookup(ctx, "knot", keys[sp.ID])
			if !ok {
				continue
			}
			var values []float64
			if err := json.Unmarshal(data, &values); err != nil {
				continue
			}
			if err := doc.Knots.Attach(sp.ID, values); err != nil {
				opts.Logger.Debug("discarding cached knot", "knot", sp.ID, "err", err)
				continue
			}
			hits++
		}
	}

	fresh := doc.Knots.Dirty()
	if err := doc.Knots.RecomputeAll(ctx); err != nil {
		return nil, hits, err
	}
	for _, id := range fresh {
		values, err := doc.Knots.KnotValues(id)
		if err != nil {
			continue
		}
		if data, err := json.Marshal(values); err == nil {
			r.store(ctx, "knot", keys[id], data, cache.TTLKnot)
		}
	}
	return doc, hits, nil
}

// Resolve is a convenience wrapper that calls ResolveWithCacheInfo and discards the cache hit info.
func (r *Runner) Resolve(ctx context.Context, name string, loaded *Loaded, specs []linking.Spec, opts Options) (*session.Document, error) {
	doc, _, err := r.ResolveWithCacheInfo(ctx, name, loaded, specs, opts)
	return doc, err
}

// knotKeys derives the cache key of every knot. Ordinary knots hash their
// spec and the layers they touch; operation knots hash their spec and the
// keys of the knots they combine, so a change anywhere below them changes
// their key too.
func (r *Runner) knotKeys(specs []linking.Spec, layerHashes map[string]string, noMatch float64) (map[string]string, error) {
	byID := make(map[string]linking.Spec, len(specs))
	for _, sp := range specs {
		byID[sp.ID] = sp
	}
	keys := make(map[string]string, len(specs))
	var keyOf func(id string) (string, error)
	keyOf = func(id string) (string, error) {
		if k, ok := keys[id]; ok {
			return k, nil
		}
		sp := byID[id]
		specHash, err := cache.HashJSON(sp)
		if err != nil {
			return "", err
		}
		opts := cache.KnotKeyOpts{NoMatchValue: noMatch}
		for _, name := range sp.Layers() {
			opts.Layers = append(opts.Layers, layerHashes[name])
		}
		for _, ref := range sp.KnotRefs() {
			k, err := keyOf(ref)
			if err != nil {
				return "", err
			}
			opts.Knots = append(opts.Knots, k)
		}
		keys[id] = r.Keyer.KnotKey(specHash, opts)
		return keys[id], nil
	}
	for _, sp := range specs {
		if _, err := keyOf(sp.ID); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// RenderWithCacheInfo generates artifacts and reports whether every knot
// graph artifact came from cache. The JSON artifacts are snapshots of live
// state and are never cached.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, doc *session.Document, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	artifacts, allCached, err := r.render(ctx, doc, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	return artifacts, allCached, err
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, doc *session.Document, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, doc, opts)
	return artifacts, err
}

func (r *Runner) render(ctx context.Context, doc *session.Document, opts Options) (map[string][]byte, bool, error) {
	artifacts := make(map[string][]byte)

	if opts.WantsJSON() {
		var buf bytes.Buffer
		if err := uio.WriteJSON(&buf, uio.Functions(doc.Knots)); err != nil {
			return nil, false, err
		}
		artifacts[ArtifactFunctions] = bytes.Clone(buf.Bytes())
		buf.Reset()
		if err := uio.WriteJSON(&buf, uio.Buffers(doc.Manager)); err != nil {
			return nil, false, err
		}
		artifacts[ArtifactBuffers] = bytes.Clone(buf.Bytes())
	}

	formats := opts.GraphFormats()
	if len(formats) == 0 {
		return artifacts, false, nil
	}

	dot := KnotGraph(doc, opts.Detailed)
	dotHash := cache.Hash([]byte(dot))
	allCached := true
	for _, format := range formats {
		key := r.Keyer.ArtifactKey(dotHash, cache.ArtifactKeyOpts{Format: format})
		data, ok := r.lookup(ctx, "artifact", key)
		if !ok {
			allCached = false
			var err error
			if data, err = knotgraph.Render(ctx, dot, format); err != nil {
				return nil, false, fmt.Errorf("knot graph %s: %w", format, err)
			}
			r.store(ctx, "artifact", key, data, cache.TTLArtifact)
		}
		artifacts[GraphArtifactName(format)] = data
	}
	return artifacts, allCached, nil
}

// KnotGraph returns the DOT source of doc's knot graph.
func KnotGraph(doc *session.Document, detailed bool) string {
	kinds := make(map[string]string)
	for _, l := range doc.Manager.Layers() {
		kinds[l.ID()] = string(l.Kind())
	}
	return knotgraph.ToDOT(doc.Knots.Specs(), knotgraph.Options{Detailed: detailed, LayerKinds: kinds})
}

// GraphArtifactName maps a knot graph format to its artifact name.
func GraphArtifactName(format string) string {
	switch format {
	case FormatSVG:
		return ArtifactSVG
	case FormatPNG:
		return ArtifactPNG
	}
	return ArtifactDOT
}

func (r *Runner) lookup(ctx context.Context, keyType, key string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

func (r *Runner) store(ctx context.Context, keyType, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "type", keyType, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
