package cache

// Keyer builds cache keys. Implementations must be deterministic.
type Keyer interface {
	// MeshKey identifies a built mesh: the features hash plus build options.
	MeshKey(featuresHash string, opts MeshKeyOpts) string
	// KnotKey identifies a resolved knot array.
	KnotKey(specHash string, opts KnotKeyOpts) string
	// ArtifactKey identifies a rendered artifact of a document.
	ArtifactKey(documentHash string, opts ArtifactKeyOpts) string
}

// MeshKeyOpts are the build options that change a mesh.
type MeshKeyOpts struct {
	Kind             string     `json:"kind"`
	NonManifold      string     `json:"non_manifold"`
	RecomputeNormals bool       `json:"recompute_normals"`
	Centroid         [3]float64 `json:"centroid"`
}

// KnotKeyOpts are the inputs besides the scheme that change a knot's values.
type KnotKeyOpts struct {
	// Layers holds one content hash (geometry plus joins) per layer the
	// scheme touches, in scheme order.
	Layers []string `json:"layers"`
	// Knots holds the keys of the knots an operation knot combines.
	Knots        []string `json:"knots,omitempty"`
	NoMatchValue float64  `json:"no_match_value"`
}

// ArtifactKeyOpts are the render options of an artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) MeshKey(featuresHash string, opts MeshKeyOpts) string {
	return hashKey("mesh", featuresHash, opts)
}

func (DefaultKeyer) KnotKey(specHash string, opts KnotKeyOpts) string {
	return hashKey("knot", specHash, opts)
}

func (DefaultKeyer) ArtifactKey(documentHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact:"+opts.Format, documentHash, opts)
}

var _ Keyer = DefaultKeyer{}
