package own

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"

	"github.com/wippyai/lifetime/errors"
	"github.com/wippyai/lifetime/resource"
)

// noCopy trips go vet's copylocks check when an Own is copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Own is the single owner of a value stored in a resource table. It is
// either Empty or Owning; the held resource is destroyed exactly once,
// by Reset, ResetTo or Close, unless ownership is moved out with
// Transfer or Release.
//
// Own must not be copied after first use. It is not safe for concurrent
// use; the table it is bound to is.
type Own[T any] struct {
	_      noCopy
	table  resource.Table
	handle resource.Handle
	typeID resource.TypeID
}

// New returns an empty handle bound to table.
func New[T any](table resource.Table) *Own[T] {
	return &Own[T]{
		table:  table,
		typeID: resource.TypeIDFor[T](),
	}
}

// Acquire returns a handle owning v.
func Acquire[T any](table resource.Table, v T) (*Own[T], error) {
	o := New[T](table)
	if err := o.Acquire(v); err != nil {
		return nil, err
	}
	return o, nil
}

// Acquire takes ownership of v. The handle must be empty.
func (o *Own[T]) Acquire(v T) error {
	if o.table == nil {
		return errors.InvalidInput(errors.PhaseAcquire, "handle has no table")
	}
	if !o.IsEmpty() {
		return errors.AlreadyOwning(typeName[T]())
	}
	if any(v) == nil {
		return errors.InvalidInput(errors.PhaseAcquire, "nil value")
	}

	h, err := o.table.Insert(o.typeID, v)
	if err != nil {
		return err
	}
	o.handle = h
	return nil
}

// IsEmpty reports whether the handle owns nothing. A handle whose entry
// was dropped by the table itself, as UnifiedTable.Close does, is empty.
func (o *Own[T]) IsEmpty() bool {
	return !o.live()
}

// Handle returns the table handle of the owned resource, or 0 when empty.
func (o *Own[T]) Handle() resource.Handle {
	if !o.live() {
		return 0
	}
	return o.handle
}

func (o *Own[T]) live() bool {
	if o == nil || o.handle == 0 {
		return false
	}
	_, ok := o.table.Get(o.handle)
	return ok
}

// Transfer moves ownership to a new handle and leaves o empty.
func (o *Own[T]) Transfer() (*Own[T], error) {
	if o.IsEmpty() {
		return nil, errors.EmptyHandle(errors.PhaseTransfer, typeName[T]())
	}
	if o.borrowed() {
		return nil, errors.OutstandingBorrow(errors.PhaseTransfer, typeName[T]())
	}

	dst := &Own[T]{
		table:  o.table,
		handle: o.handle,
		typeID: o.typeID,
	}
	o.handle = 0
	o.table.Transferred(dst.handle)
	return dst, nil
}

// Reset destroys the owned resource, if any, and leaves the handle empty.
// Resetting an empty handle does nothing. A destructor error is returned
// but the handle is empty regardless.
func (o *Own[T]) Reset() error {
	if o.IsEmpty() {
		if o != nil {
			o.handle = 0
		}
		return nil
	}
	if o.borrowed() {
		return errors.OutstandingBorrow(errors.PhaseReset, typeName[T]())
	}

	_, err := o.table.Remove(o.handle)
	if _, live := o.table.Get(o.handle); live {
		return err
	}
	o.handle = 0
	return err
}

// ResetTo destroys the owned resource, if any, then takes ownership of v.
// If the old resource could not be removed v is not acquired and stays
// with the caller. A destructor error is joined with the result.
func (o *Own[T]) ResetTo(v T) error {
	err := o.Reset()
	if !o.IsEmpty() {
		return err
	}
	return multierr.Append(err, o.Acquire(v))
}

// Close is Reset, for use with defer.
func (o *Own[T]) Close() error {
	return o.Reset()
}

// Release gives up ownership without destroying the resource. The caller
// becomes responsible for v.
func (o *Own[T]) Release() (T, error) {
	var zero T
	if o.IsEmpty() {
		return zero, errors.EmptyHandle(errors.PhaseTransfer, typeName[T]())
	}
	if o.borrowed() {
		return zero, errors.OutstandingBorrow(errors.PhaseTransfer, typeName[T]())
	}

	value, err := o.table.Take(o.handle)
	if err != nil {
		return zero, err
	}
	o.handle = 0

	v, ok := value.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseTransfer, typeName[T](), value)
	}
	return v, nil
}

// Borrow returns a non-owning reference to the resource. The reference
// goes stale once the handle is reset, re-acquired or transferred.
func (o *Own[T]) Borrow() (Ref[T], error) {
	if o.IsEmpty() {
		return Ref[T]{}, errors.EmptyHandle(errors.PhaseBorrow, typeName[T]())
	}
	return Ref[T]{owner: o, handle: o.handle}, nil
}

// With calls fn with the resource. While fn runs the resource counts as
// borrowed, so Reset, Transfer and Release on o fail with
// errors.ErrOutstandingBorrow.
func (o *Own[T]) With(fn func(T) error) error {
	if o.IsEmpty() {
		return errors.EmptyHandle(errors.PhaseBorrow, typeName[T]())
	}

	h := o.handle
	if !o.table.Borrow(h) {
		return errors.StaleBorrow(typeName[T]())
	}
	defer o.table.ReturnBorrow(h)

	v, err := o.resolve(errors.PhaseBorrow)
	if err != nil {
		return err
	}
	return fn(v)
}

// View returns a read-only view of the handle.
func (o *Own[T]) View() View[T] {
	return View[T]{o: o}
}

func (o *Own[T]) String() string {
	if o.IsEmpty() {
		return fmt.Sprintf("own[%s](empty)", typeName[T]())
	}
	return fmt.Sprintf("own[%s](%s)", typeName[T](), o.handle)
}

func (o *Own[T]) borrowed() bool {
	n, ok := o.table.BorrowCount(o.handle)
	return ok && n > 0
}

func (o *Own[T]) resolve(phase errors.Phase) (T, error) {
	var zero T
	value, ok := o.table.GetTyped(o.handle, o.typeID)
	if !ok {
		return zero, errors.StaleBorrow(typeName[T]())
	}
	v, ok := value.(T)
	if !ok {
		return zero, errors.TypeMismatch(phase, typeName[T](), value)
	}
	return v, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
