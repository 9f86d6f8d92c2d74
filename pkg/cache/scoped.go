package cache

// ScopedKeyer wraps a Keyer with a prefix so that several documents or
// tenants sharing one Redis instance never see each other's entries.
//
//	docKeyer := NewScopedKeyer(NewDefaultKeyer(), "doc:3f2a...:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

func (k *ScopedKeyer) MeshKey(featuresHash string, opts MeshKeyOpts) string {
	return k.prefix + k.inner.MeshKey(featuresHash, opts)
}

func (k *ScopedKeyer) KnotKey(specHash string, opts KnotKeyOpts) string {
	return k.prefix + k.inner.KnotKey(specHash, opts)
}

func (k *ScopedKeyer) ArtifactKey(documentHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(documentHash, opts)
}
