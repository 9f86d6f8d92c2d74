package layer

import (
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/errors"
)

// DefaultNoMatchValue is what a cross-layer join yields for an element
// without any matched partner when neither the step nor the manager says
// otherwise.
const DefaultNoMatchValue = 0.0

// ManagerOptions configures a Manager. The zero value is usable.
type ManagerOptions struct {
	// NoMatchValue replaces the reduction of an empty match set in
	// cross-layer joins. A step's DefaultValue takes precedence.
	NoMatchValue float64
	// Logger receives per-step debug output. Nil discards.
	Logger *log.Logger
}

// Manager holds the physical layers of one document and resolves linking
// schemes over them. It never holds knot state itself.
//
// Manager is safe for concurrent use: layers may be resolved in parallel as
// long as distinct knots write distinct ids.
type Manager struct {
	mu     sync.RWMutex
	layers map[string]Layer
	order  []string

	noMatch float64
	logger  *log.Logger
}

// NewManager returns an empty manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Manager{
		layers:  make(map[string]Layer),
		noMatch: opts.NoMatchValue,
		logger:  opts.Logger,
	}
}

// AddLayer registers l. Layer ids are unique.
func (m *Manager) AddLayer(l Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.layers[l.ID()]; dup {
		return errors.New(errors.ErrCodeInvalidSpec, "duplicate layer id %q", l.ID())
	}
	m.layers[l.ID()] = l
	m.order = append(m.order, l.ID())
	return nil
}

// Layer returns the layer registered under id.
func (m *Manager) Layer(id string) (Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeLayerNotFound, "layer %q not found", id)
	}
	return l, nil
}

// Layers returns every layer in registration order.
func (m *Manager) Layers() []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Layer, len(m.order))
	for i, id := range m.order {
		out[i] = m.layers[id]
	}
	return out
}

// LayerIDs returns the registered ids in registration order.
func (m *Manager) LayerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// UpdateJoins replaces the join tables of layer id. Callers owning knots
// should mark every knot reading id as dirty afterwards.
func (m *Manager) UpdateJoins(id string, t *join.Tables) error {
	l, err := m.Layer(id)
	if err != nil {
		return err
	}
	l.SetJoins(t)
	m.logger.Debug("joins updated", "layer", id, "joins", t.Len())
	return nil
}

// NoMatchValue returns the configured fallback for unmatched elements.
func (m *Manager) NoMatchValue() float64 { return m.noMatch }
