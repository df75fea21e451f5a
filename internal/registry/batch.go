package registry

import (
	"sync"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/transform"
)

// InstancedBatch is one renderable shape drawn count times. Slot i of the
// matrix buffer is only ever written from body i.
type InstancedBatch struct {
	mu       sync.RWMutex
	name     string
	bodies   []physics.BodyID
	matrices []float32
	version  uint64
	dirty    bool
}

// BatchSnapshot is a copy of a batch taken at the end of a sync. Dirty is
// set when at least one slot changed during that sync, or on the first sync
// after the batch was published.
type BatchSnapshot struct {
	Count    int
	Version  uint64
	Dirty    bool
	Matrices []float32
}

func newInstancedBatch(name string, bodies []physics.BodyID) *InstancedBatch {
	return &InstancedBatch{
		name:     name,
		bodies:   append([]physics.BodyID(nil), bodies...),
		matrices: make([]float32, transform.Slot(len(bodies))),
		version:  1,
	}
}

func (b *InstancedBatch) Name() string {
	return b.name
}

func (b *InstancedBatch) Count() int {
	return len(b.bodies)
}

// Matrices returns a copy of the instance buffer.
func (b *InstancedBatch) Matrices() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]float32(nil), b.matrices...)
}

// Matrix returns the matrix of one slot.
func (b *InstancedBatch) Matrix(slot int) ([transform.MatrixSize]float32, bool) {
	var m [transform.MatrixSize]float32
	if slot < 0 || slot >= len(b.bodies) {
		return m, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	copy(m[:], b.matrices[transform.Slot(slot):])
	return m, true
}

func (b *InstancedBatch) write(slot int, t physics.Transform) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return transform.Compose(t.Position, t.Orientation, b.matrices, transform.Slot(slot))
}

// update recomposes one slot and reports whether its matrix changed.
func (b *InstancedBatch) update(slot int, t physics.Transform) (bool, error) {
	var m [transform.MatrixSize]float32
	if err := transform.Compose(t.Position, t.Orientation, m[:], 0); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	off := transform.Slot(slot)
	if off < 0 || off+transform.MatrixSize > len(b.matrices) {
		return false, transform.ErrSlotOutOfRange
	}
	dst := b.matrices[off : off+transform.MatrixSize]
	if [transform.MatrixSize]float32(dst) == m {
		return false, nil
	}
	copy(dst, m[:])
	return true, nil
}

func (b *InstancedBatch) commit(changed bool) BatchSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if changed {
		b.version++
	}
	dirty := changed || b.dirty
	b.dirty = false
	return BatchSnapshot{
		Count:    len(b.bodies),
		Version:  b.version,
		Dirty:    dirty,
		Matrices: append([]float32(nil), b.matrices...),
	}
}
