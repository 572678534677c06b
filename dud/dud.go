package dud

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/lifetime"
	"github.com/wippyai/lifetime/errors"
)

const (
	resourceName = "dud"
	pointsSize   = 4
	pointsAlign  = 4
)

// Store is the free store a Dud keeps its state in. *heap.Store implements it.
type Store interface {
	Alloc(size, align uint32) (uint32, error)
	Release(ptr uint32) error
	Memory() lifetime.Memory
}

// Dud is an owned resource holding a points value in the free store.
// It is destroyed exactly once, by Drop. Not safe for concurrent use.
type Dud struct {
	store    Store
	ptr      uint32
	released bool
}

// New constructs a Dud with zero points.
func New(store Store) (*Dud, error) {
	return NewWithPoints(store, 0)
}

// NewWithPoints constructs a Dud holding points.
func NewWithPoints(store Store, points int32) (*Dud, error) {
	if store == nil {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "nil store")
	}

	ptr, err := store.Alloc(pointsSize, pointsAlign)
	if err != nil {
		return nil, err
	}
	if err := store.Memory().WriteU32(ptr, uint32(points)); err != nil {
		_ = store.Release(ptr)
		return nil, err
	}

	Logger().Debug("resource created",
		zap.Uint32("ptr", ptr),
		zap.Int32("points", points))

	return &Dud{store: store, ptr: ptr}, nil
}

// Talk describes the Dud's current points. It does not modify the Dud.
func (d *Dud) Talk() (string, error) {
	p, err := d.Points()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("talking talking talking %d", p), nil
}

// Points returns the stored points value.
func (d *Dud) Points() (int32, error) {
	if d.released {
		return 0, errors.Released(errors.PhaseAccess, resourceName)
	}
	v, err := d.store.Memory().ReadU32(d.ptr)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// SetPoints overwrites the stored points value.
func (d *Dud) SetPoints(points int32) error {
	if d.released {
		return errors.Released(errors.PhaseAccess, resourceName)
	}
	return d.store.Memory().WriteU32(d.ptr, uint32(points))
}

// Drop destroys the Dud and returns its block to the store.
// A second Drop fails with errors.ErrDoubleRelease and frees nothing.
// If the store refuses the block the Dud stays live and Drop may be retried.
func (d *Dud) Drop() error {
	if d.released {
		return errors.DoubleRelease(errors.PhaseDrop, resourceName, d.ptr)
	}

	if err := d.store.Release(d.ptr); err != nil {
		return err
	}
	d.released = true

	Logger().Debug("resource destroyed",
		zap.Uint32("ptr", d.ptr))

	return nil
}

// Released reports whether Drop has run.
func (d *Dud) Released() bool {
	return d.released
}

// Ptr returns the address of the Dud's block in the store.
func (d *Dud) Ptr() uint32 {
	return d.ptr
}

func (d *Dud) String() string {
	if d.released {
		return fmt.Sprintf("dud@%d(released)", d.ptr)
	}
	return fmt.Sprintf("dud@%d", d.ptr)
}
