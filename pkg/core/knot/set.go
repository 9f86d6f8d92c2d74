package knot

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/urbanknots/pkg/core/join"
	"github.com/matzehuels/urbanknots/pkg/core/layer"
	"github.com/matzehuels/urbanknots/pkg/core/linking"
	"github.com/matzehuels/urbanknots/pkg/errors"
	"github.com/matzehuels/urbanknots/pkg/observability"
)

// DefaultParallel is the number of knots RecomputeAll resolves at once.
const DefaultParallel = 4

// Options configures a Set. The zero value is usable.
type Options struct {
	// Parallel bounds concurrent knot resolution in RecomputeAll. Values
	// below 1 mean DefaultParallel; 1 resolves sequentially.
	Parallel int
	Logger   *log.Logger
}

// Set owns the knots of one document. It validates specs eagerly, tracks
// which knots are stale and resolves them through a layer.Manager.
//
// Set implements layer.KnotSource over its resolved values, so operation
// knots read the arrays of the knots they combine.
type Set struct {
	mu      sync.Mutex
	manager *layer.Manager
	knots   map[string]*Knot
	order   []string

	parallel int
	logger   *log.Logger
}

// NewSet returns an empty set resolving through m.
func NewSet(m *layer.Manager, opts Options) *Set {
	if opts.Parallel < 1 {
		opts.Parallel = DefaultParallel
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Set{
		manager:  m,
		knots:    make(map[string]*Knot),
		parallel: opts.Parallel,
		logger:   opts.Logger,
	}
}

// Manager returns the manager the set resolves through.
func (s *Set) Manager() *layer.Manager { return s.manager }

// Add registers specs as dirty knots. The whole set, including the new
// specs, must validate: ids stay unique and operation knots may only name
// knots that exist.
func (s *Set) Add(specs ...linking.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.specsLocked()
	for _, sp := range specs {
		if _, dup := s.knots[sp.ID]; dup {
			return errors.New(errors.ErrCodeInvalidSpec, "duplicate knot id %q", sp.ID)
		}
		all = append(all, sp)
	}
	if err := linking.ValidateSet(all); err != nil {
		return err
	}
	for _, sp := range specs {
		s.knots[sp.ID] = &Knot{Spec: sp, dirty: true}
		s.order = append(s.order, sp.ID)
	}
	s.retargetLocked()
	return nil
}

// Update replaces the spec of an existing knot. The knot and every
// operation knot depending on it become dirty.
func (s *Set) Update(spec linking.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.knots[spec.ID]
	if !ok {
		return errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", spec.ID)
	}
	all := s.specsLocked()
	for i := range all {
		if all[i].ID == spec.ID {
			all[i] = spec
		}
	}
	if err := linking.ValidateSet(all); err != nil {
		return err
	}
	k.Spec = spec
	s.retargetLocked()
	s.markLocked([]string{spec.ID})
	return nil
}

// Remove deletes a knot and its field from the rendering layer. Knots still
// referenced by an operation knot cannot be removed.
func (s *Set) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.knots[id]
	if !ok {
		return errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", id)
	}
	for _, other := range s.knots {
		if slices.Contains(other.Spec.KnotRefs(), id) {
			return errors.New(errors.ErrCodeInvalidSpec, "knot %s is used by knotOp %s", id, other.Spec.ID)
		}
	}
	if l, err := s.manager.Layer(k.Target.Name); err == nil {
		l.Mesh().RemoveFunctionData(id)
	}
	delete(s.knots, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return nil
}

// IDs returns the knot ids in insertion order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Len returns the number of knots.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Specs returns the specs in insertion order.
func (s *Set) Specs() []linking.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.specsLocked()
}

// Status returns a snapshot of knot id.
func (s *Set) Status(id string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.knots[id]
	if !ok {
		return Status{}, false
	}
	return k.status(), true
}

// Statuses returns snapshots of every knot in insertion order.
func (s *Set) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.order))
	for i, id := range s.order {
		out[i] = s.knots[id].status()
	}
	return out
}

// Dirty returns the ids of stale knots in insertion order.
func (s *Set) Dirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range s.order {
		if s.knots[id].dirty {
			out = append(out, id)
		}
	}
	return out
}

// KnotValues returns the resolved array of knot id. A stale knot is an
// error: callers recompute before reading.
func (s *Set) KnotValues(id string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.knots[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", id)
	}
	if k.dirty {
		return nil, errors.New(errors.ErrCodeDataIntegrity, "knot %s has not been resolved", id)
	}
	return k.values, nil
}

// MarkLayerDirty marks every knot that reads from or renders on layerID,
// and every operation knot built on them, as dirty. It returns the ids that
// changed state.
func (s *Set) MarkLayerDirty(layerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seeds []string
	for _, id := range s.order {
		k := s.knots[id]
		if slices.Contains(k.Spec.Layers(), layerID) || k.Target.Name == layerID {
			seeds = append(seeds, id)
		}
	}
	return s.markLocked(seeds)
}

// UpdateJoins replaces the join tables of a layer and marks the knots
// depending on it.
func (s *Set) UpdateJoins(layerID string, t *join.Tables) error {
	if err := s.manager.UpdateJoins(layerID, t); err != nil {
		return err
	}
	if marked := s.MarkLayerDirty(layerID); len(marked) > 0 {
		s.logger.Debug("knots marked dirty", "layer", layerID, "knots", marked)
	}
	return nil
}

// Recompute resolves knot id, first resolving any stale knot it combines.
func (s *Set) Recompute(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.knots[id]; !ok {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", id)
	}
	var chain []string
	s.dependencyOrderLocked(id, map[string]bool{}, &chain)
	s.mu.Unlock()

	for _, dep := range chain[:len(chain)-1] {
		if st, _ := s.Status(dep); !st.Dirty {
			continue
		}
		if err := s.resolve(ctx, dep); err != nil {
			return err
		}
	}
	return s.resolve(ctx, id)
}

// RecomputeAll resolves every dirty knot. Ordinary knots run first, in
// parallel; operation knots follow in waves so that every knot they combine
// is resolved before them. The first failure cancels the remaining work.
func (s *Set) RecomputeAll(ctx context.Context) error {
	s.mu.Lock()
	waves := s.wavesLocked()
	s.mu.Unlock()

	start := time.Now()
	n := 0
	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.parallel)
		for _, id := range wave {
			g.Go(func() error { return s.resolve(gctx, id) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		n += len(wave)
	}
	if n > 0 {
		s.logger.Info("knots resolved", "knots", n, "waves", len(waves), "duration", time.Since(start))
	}
	return nil
}

// resolve runs one knot and attaches its values to the target layer.
func (s *Set) resolve(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	k := s.knots[id]
	spec, target := k.Spec, k.Target
	s.mu.Unlock()

	hooks := observability.Pipeline()
	hooks.OnResolveStart(ctx, id)
	start := time.Now()
	values, err := s.manager.ResolveKnot(spec, s)
	if err == nil && values != nil {
		err = s.distribute(id, values, target)
	}
	elapsed := time.Since(start)
	hooks.OnResolveComplete(ctx, id, len(values), elapsed, err)

	s.mu.Lock()
	k.duration = elapsed
	k.err = err
	if err == nil {
		k.values = values
		k.dirty = false
	}
	s.mu.Unlock()

	if err != nil {
		return errors.Wrap(errors.GetCode(err), err, "knot %s", id)
	}
	s.logger.Debug("knot resolved", "knot", id, "target", target.String(), "values", len(values), "duration", elapsed)
	return nil
}

// Attach installs values resolved elsewhere (a cache, a stored document)
// for a dirty knot, as if Recompute had produced them. The array must have
// one value per element of the knot's target level.
func (s *Set) Attach(id string, values []float64) error {
	s.mu.Lock()
	k, ok := s.knots[id]
	if !ok {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeKnotNotFound, "knot %q not found", id)
	}
	target := k.Target
	s.mu.Unlock()

	if values != nil {
		if err := s.distribute(id, values, target); err != nil {
			return errors.Wrap(errors.GetCode(err), err, "attach knot %s", id)
		}
	}
	s.mu.Lock()
	k.values = values
	k.err = nil
	k.dirty = false
	s.mu.Unlock()
	return nil
}

func (s *Set) distribute(id string, values []float64, target linking.Ref) error {
	l, err := s.manager.Layer(target.Name)
	if err != nil {
		return err
	}
	return l.DistributeFunctionValues(id, values, target.Level)
}

func (s *Set) specsLocked() []linking.Spec {
	out := make([]linking.Spec, len(s.order))
	for i, id := range s.order {
		out[i] = s.knots[id].Spec
	}
	return out
}

// retargetLocked recomputes every knot's target. The set is acyclic once
// validated, so following operation knots terminates.
func (s *Set) retargetLocked() {
	for _, k := range s.knots {
		sp := k.Spec
		for sp.KnotOp {
			next, ok := s.knots[sp.Target().Name]
			if !ok {
				break
			}
			sp = next.Spec
		}
		k.Target = sp.Target()
	}
}

// markLocked marks seeds and every operation knot reachable from them
// through knot references.
func (s *Set) markLocked(seeds []string) []string {
	var changed []string
	queue := slices.Clone(seeds)
	seen := make(map[string]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		k, ok := s.knots[id]
		if !ok {
			continue
		}
		if !k.dirty {
			changed = append(changed, id)
		}
		k.dirty = true
		for _, other := range s.order {
			if slices.Contains(s.knots[other].Spec.KnotRefs(), id) {
				queue = append(queue, other)
			}
		}
	}
	return changed
}

// dependencyOrderLocked appends id after every knot it references.
func (s *Set) dependencyOrderLocked(id string, seen map[string]bool, out *[]string) {
	if seen[id] {
		return
	}
	seen[id] = true
	for _, ref := range s.knots[id].Spec.KnotRefs() {
		s.dependencyOrderLocked(ref, seen, out)
	}
	*out = append(*out, id)
}

// wavesLocked groups dirty knots by operation depth: ordinary knots have
// depth 0, an operation knot is one deeper than the deepest knot it uses.
func (s *Set) wavesLocked() [][]string {
	depth := make(map[string]int)
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, ref := range s.knots[id].Spec.KnotRefs() {
			d = max(d, depthOf(ref)+1)
		}
		depth[id] = d
		return d
	}

	var waves [][]string
	for _, id := range s.order {
		if !s.knots[id].dirty {
			continue
		}
		d := depthOf(id)
		for len(waves) <= d {
			waves = append(waves, nil)
		}
		waves[d] = append(waves[d], id)
	}
	return slices.DeleteFunc(waves, func(w []string) bool { return len(w) == 0 })
}
