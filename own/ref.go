package own

import (
	"github.com/wippyai/lifetime/errors"
	"github.com/wippyai/lifetime/resource"
)

// Ref is a non-owning reference obtained from Own.Borrow. It cannot
// destroy or transfer the resource, and it goes stale as soon as the
// owning handle is reset, re-acquired or transferred.
type Ref[T any] struct {
	owner  *Own[T]
	handle resource.Handle
}

// Get returns the referenced value, or errors.ErrStaleBorrow if the
// owner no longer holds the resource this Ref was issued for.
func (r Ref[T]) Get() (T, error) {
	var zero T
	if r.owner == nil {
		return zero, errors.EmptyHandle(errors.PhaseBorrow, typeName[T]())
	}
	if r.owner.handle != r.handle {
		return zero, errors.StaleBorrow(typeName[T]())
	}
	return r.owner.resolve(errors.PhaseAccess)
}

// Valid reports whether Get would succeed.
func (r Ref[T]) Valid() bool {
	if r.owner == nil || r.owner.handle != r.handle {
		return false
	}
	_, ok := r.owner.table.Get(r.handle)
	return ok
}
