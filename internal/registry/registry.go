// Package registry mirrors simulation bodies to renderables. A renderable is
// either bound to one body or is a slot of an instanced batch whose matrix
// buffer is recomposed from its bodies on every sync.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
)

var (
	ErrDuplicateRenderable = errors.New("renderable already registered")
	ErrEmptyBatch          = errors.New("instanced batch has no bodies")
	ErrUnknownBatch        = errors.New("unknown instanced batch")
)

// Source is where bodies are checked and transforms are read from.
// *physics.World satisfies it.
type Source interface {
	Has(id physics.BodyID) bool
	Transform(id physics.BodyID) (physics.Transform, error)
}

// Kind tags a Binding.
type Kind int

const (
	KindSingle Kind = iota
	KindBatchSlot
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBatchSlot:
		return "batch_slot"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Binding ties a renderable to its source body. Batch and Slot are only set
// for KindBatchSlot.
type Binding struct {
	Kind       Kind
	Renderable string
	Body       physics.BodyID
	Batch      string
	Slot       int
}

// Registry is safe for concurrent use. Registration may happen from loader
// goroutines while the frame driver syncs.
type Registry struct {
	mu      sync.Mutex
	src     Source
	singles map[string]physics.BodyID
	batches map[string]*InstancedBatch
	order   []Binding
}

// New creates an empty registry reading from src.
func New(src Source) *Registry {
	return &Registry{
		src:     src,
		singles: make(map[string]physics.BodyID),
		batches: make(map[string]*InstancedBatch),
	}
}

// RegisterSingle binds one renderable to one body.
func (r *Registry) RegisterSingle(renderable string, body physics.BodyID) error {
	if !r.src.Has(body) {
		return fmt.Errorf("register %q: %w: %d", renderable, physics.ErrUnknownBody, body)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(renderable) {
		return fmt.Errorf("register %q: %w", renderable, ErrDuplicateRenderable)
	}
	r.singles[renderable] = body
	r.order = append(r.order, Binding{Kind: KindSingle, Renderable: renderable, Body: body})
	return nil
}

// RegisterBatch publishes an instanced batch with one slot per body, in
// order. Every body must already exist; the batch is composed once before
// it becomes visible, so a sync never sees a half-built batch.
func (r *Registry) RegisterBatch(name string, bodies []physics.BodyID) (*InstancedBatch, error) {
	if len(bodies) == 0 {
		return nil, fmt.Errorf("register batch %q: %w", name, ErrEmptyBatch)
	}
	b := newInstancedBatch(name, bodies)
	for i, id := range b.bodies {
		t, err := r.src.Transform(id)
		if err != nil {
			return nil, fmt.Errorf("register batch %q slot %d: %w", name, i, err)
		}
		if err := b.write(i, t); err != nil {
			return nil, fmt.Errorf("register batch %q slot %d: %w", name, i, err)
		}
	}
	b.dirty = true

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(name) {
		return nil, fmt.Errorf("register batch %q: %w", name, ErrDuplicateRenderable)
	}
	r.batches[name] = b
	for i, id := range b.bodies {
		r.order = append(r.order, Binding{Kind: KindBatchSlot, Renderable: name, Body: id, Batch: name, Slot: i})
	}
	return b, nil
}

// Bindings returns every binding in registration order.
func (r *Registry) Bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Binding(nil), r.order...)
}

// Lookup returns the binding of a single renderable.
func (r *Registry) Lookup(renderable string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.singles[renderable]
	if !ok {
		return Binding{}, false
	}
	return Binding{Kind: KindSingle, Renderable: renderable, Body: id}, true
}

// Batch returns a published batch by name.
func (r *Registry) Batch(name string) (*InstancedBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBatch, name)
	}
	return b, nil
}

// BatchNames returns the published batch names, sorted.
func (r *Registry) BatchNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.batches))
	for name := range r.batches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot is the presentation state produced by one Sync.
type Snapshot struct {
	Singles map[string]physics.Transform
	Batches map[string]BatchSnapshot
}

// Sync reads every bound body and recomposes all batch matrices. A missing
// body aborts the sync with an error naming the renderable.
//
// A batch is not flagged dirty on every sync. It is dirty on the first sync
// after it was published and on any sync where at least one slot matrix
// changed, and its version is bumped only in the latter case. A resting
// batch therefore reports Dirty false so its matrices need not be resent.
func (r *Registry) Sync() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Singles: make(map[string]physics.Transform, len(r.singles)),
		Batches: make(map[string]BatchSnapshot, len(r.batches)),
	}
	changed := make(map[string]bool, len(r.batches))

	for _, b := range r.order {
		t, err := r.src.Transform(b.Body)
		if err != nil {
			return Snapshot{}, fmt.Errorf("sync %s %q: %w", b.Kind, b.Renderable, err)
		}
		switch b.Kind {
		case KindSingle:
			snap.Singles[b.Renderable] = t
		case KindBatchSlot:
			batch := r.batches[b.Batch]
			diff, err := batch.update(b.Slot, t)
			if err != nil {
				return Snapshot{}, fmt.Errorf("sync batch %q slot %d: %w", b.Batch, b.Slot, err)
			}
			changed[b.Batch] = changed[b.Batch] || diff
		default:
			return Snapshot{}, fmt.Errorf("sync %q: unhandled binding kind %s", b.Renderable, b.Kind)
		}
	}

	for name, batch := range r.batches {
		snap.Batches[name] = batch.commit(changed[name])
	}
	return snap, nil
}

// taken reports whether name is used by a single or a batch. Callers hold mu.
func (r *Registry) taken(name string) bool {
	if _, ok := r.singles[name]; ok {
		return true
	}
	_, ok := r.batches[name]
	return ok
}
