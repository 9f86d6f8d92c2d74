// Package join holds the precomputed join tables the resolver consumes.
//
// Spatial and abstract joins are computed by an external service. For every
// physical layer it delivers one [Entry] per join: a [JoinedLayer]
// describing the join and the [JoinedObjects] holding its result, one entry
// per element of the layer at the join's out level.
package join

import (
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// JoinedLayer identifies one join from the point of view of the layer that
// owns it (the out side).
type JoinedLayer struct {
	Relation    linking.Relation `json:"spatial_relation"`
	LayerID     string           `json:"layerId"` // partner layer or abstract dataset
	Abstract    bool             `json:"abstract"`
	InLevel     linking.Level    `json:"inLevel"`
	OutLevel    linking.Level    `json:"outLevel"`
	MaxDistance *float64         `json:"maxDistance,omitempty"`
}

// JoinedObjects is the result of a join. Abstract joins carry one value per
// out element in InValues. Physical joins carry, per out element, the ids of
// the matched partner elements in InIds; a nil entry means no match.
type JoinedObjects struct {
	InValues []float64 `json:"inValues,omitempty"`
	InIds    [][]int   `json:"inIds,omitempty"`
}

// Len returns the number of out elements the join covers.
func (o JoinedObjects) Len() int {
	if o.InValues != nil {
		return len(o.InValues)
	}
	return len(o.InIds)
}

// Entry pairs a descriptor with its result.
type Entry struct {
	JoinedLayer
	JoinedObjects
}

// Validate checks that the entry carries the payload its descriptor implies.
func (e Entry) Validate() error {
	if e.LayerID == "" {
		return errors.New(errors.ErrCodeDataIntegrity, "join without layerId")
	}
	if e.InLevel == linking.LevelUnspecified || e.OutLevel == linking.LevelUnspecified {
		return errors.New(errors.ErrCodeDataIntegrity, "join with %s: missing level", e.LayerID)
	}
	if e.InValues != nil && e.InIds != nil {
		return errors.New(errors.ErrCodeDataIntegrity, "join with %s: both inValues and inIds set", e.LayerID)
	}
	if e.Abstract && e.InIds != nil {
		return errors.New(errors.ErrCodeDataIntegrity, "abstract join with %s carries inIds", e.LayerID)
	}
	if !e.Abstract && e.InValues != nil {
		return errors.New(errors.ErrCodeDataIntegrity, "physical join with %s carries inValues", e.LayerID)
	}
	return nil
}

// Key identifies a join for lookup.
type Key struct {
	Relation linking.Relation
	Partner  string
	Abstract bool
	In       linking.Level
	Out      linking.Level
}

func (l JoinedLayer) key() Key {
	return Key{Relation: l.Relation, Partner: l.LayerID, Abstract: l.Abstract, In: l.InLevel, Out: l.OutLevel}
}

// KeyFor returns the key a resolver step looks up on its out layer.
func KeyFor(st linking.Step) Key {
	k := Key{Relation: st.Relation, Abstract: st.Abstract, Out: st.Out.Level}
	if st.In != nil {
		k.Partner = st.In.Name
		k.In = st.In.Level
	}
	return k
}

// Tables holds the joins owned by one physical layer. The zero value is
// empty and ready to use. Tables is not safe for concurrent mutation.
type Tables struct {
	entries []Entry
	index   map[Key]int
}

// NewTables builds tables from entries. Later entries replace earlier ones
// with the same key.
func NewTables(entries []Entry) (*Tables, error) {
	t := &Tables{}
	for _, e := range entries {
		if err := t.Add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add validates and stores e, replacing an existing join with the same key.
func (t *Tables) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if t.index == nil {
		t.index = make(map[Key]int)
	}
	k := e.key()
	if i, ok := t.index[k]; ok {
		t.entries[i] = e
		return nil
	}
	t.index[k] = len(t.entries)
	t.entries = append(t.entries, e)
	return nil
}

// Lookup returns the joined objects stored under k.
func (t *Tables) Lookup(k Key) (JoinedObjects, bool) {
	if t == nil {
		return JoinedObjects{}, false
	}
	i, ok := t.index[k]
	if !ok {
		return JoinedObjects{}, false
	}
	return t.entries[i].JoinedObjects, true
}

// Layers returns the descriptors in insertion order.
func (t *Tables) Layers() []JoinedLayer {
	if t == nil {
		return nil
	}
	out := make([]JoinedLayer, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.JoinedLayer
	}
	return out
}

// Entries returns a copy of all entries in insertion order.
func (t *Tables) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of joins.
func (t *Tables) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Partners returns the distinct partner ids in insertion order.
func (t *Tables) Partners() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.entries {
		if !seen[e.LayerID] {
			seen[e.LayerID] = true
			out = append(out, e.LayerID)
		}
	}
	return out
}
