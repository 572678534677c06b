package resource

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/wippyai/lifetime/errors"
)

// LocalBackend is an in-memory resource backend with borrow tracking.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

var _ Backend = (*LocalBackend)(nil)

type entry struct {
	value       any
	typeID      TypeID
	gen         uint32
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typeID TypeID, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.Closed(errors.PhaseAcquire, "resource backend")
	}

	if len(b.freeList) > 0 {
		slot := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[slot-1]
		e.typeID = typeID
		e.value = value
		e.valid = true
		return makeHandle(slot, e.gen), nil
	}

	b.entries = append(b.entries, entry{
		typeID: typeID,
		value:  value,
		gen:    1,
		valid:  true,
	})
	return makeHandle(uint32(len(b.entries)), 1), nil
}

// lookup returns the live entry for handle. Caller holds b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	slot := handle.Slot()
	if slot == 0 || int(slot) > len(b.entries) {
		return nil
	}
	e := &b.entries[slot-1]
	if !e.valid || e.gen != handle.Generation() {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Drop removes a resource and returns the value whose destructor should run.
func (b *LocalBackend) Drop(handle Handle) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, errors.DoubleRelease(errors.PhaseDrop, "handle", handle)
	}

	if e.borrowCount > 0 {
		return nil, errors.New(errors.PhaseDrop, errors.KindOutstandingBorrow).
			Value(handle).
			Detail("%d outstanding borrows", e.borrowCount).
			Build()
	}

	value := e.value
	e.valid = false
	e.value = nil
	e.borrowCount = 0
	e.gen++
	b.freeList = append(b.freeList, handle.Slot())

	return value, nil
}

// Close releases all resources, running each Dropper once.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				err = multierr.Append(err, d.Drop())
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return err
}

// Borrow increments the borrow count for a handle.
func (b *LocalBackend) Borrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return false
	}

	e.borrowCount++
	return true
}

// ReturnBorrow decrements the borrow count for a handle.
func (b *LocalBackend) ReturnBorrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return false
	}

	e.borrowCount--
	return true
}

// BorrowCount returns the number of outstanding borrows for a handle.
func (b *LocalBackend) BorrowCount(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.borrowCount, true
}

// TypeID returns the type ID for a handle.
func (b *LocalBackend) TypeID(handle Handle) (TypeID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Len returns the number of active resources.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all active resources.
func (b *LocalBackend) Each(fn func(Handle, TypeID, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i+1), e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}
