package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which lifecycle operation produced the error
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // free-store allocation
	PhaseFree     Phase = "free"     // free-store release
	PhaseAcquire  Phase = "acquire"  // handle takes ownership
	PhaseTransfer Phase = "transfer" // ownership moves between handles
	PhaseReset    Phase = "reset"    // handle destroys its resource
	PhaseBorrow   Phase = "borrow"   // non-owning access
	PhaseAccess   Phase = "access"   // resource read or write
	PhaseDrop     Phase = "drop"     // resource destructor
	PhaseScope    Phase = "scope"    // frame cleanup
	PhaseTrace    Phase = "trace"    // lifecycle event recording
)

// Kind categorizes the error
type Kind string

const (
	KindEmptyHandle       Kind = "empty_handle"
	KindDoubleRelease     Kind = "double_release"
	KindAlreadyOwning     Kind = "already_owning"
	KindOutstandingBorrow Kind = "outstanding_borrow"
	KindStaleBorrow       Kind = "stale_borrow"
	KindReleased          Kind = "released"
	KindClosed            Kind = "closed"
	KindAllocation        Kind = "allocation"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidInput      Kind = "invalid_input"
	KindTypeMismatch      Kind = "type_mismatch"
	KindPanic             Kind = "panic"
	KindStorage           Kind = "storage"
)

// Sentinels for errors.Is. They carry no Phase, so they match any phase.
var (
	ErrEmptyHandle       = &Error{Kind: KindEmptyHandle}
	ErrDoubleRelease     = &Error{Kind: KindDoubleRelease}
	ErrAlreadyOwning     = &Error{Kind: KindAlreadyOwning}
	ErrOutstandingBorrow = &Error{Kind: KindOutstandingBorrow}
	ErrStaleBorrow       = &Error{Kind: KindStaleBorrow}
	ErrReleased          = &Error{Kind: KindReleased}
	ErrClosed            = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Resource != "" {
		b.WriteString(" on ")
		b.WriteString(e.Resource)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Resource sets the name of the resource type involved
func (b *Builder) Resource(name string) *Builder {
	b.err.Resource = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// EmptyHandle reports an operation that needs an owned resource on an empty handle
func EmptyHandle(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindEmptyHandle,
		Resource: resource,
		Detail:   "handle owns no resource",
	}
}

// AlreadyOwning reports an acquire on a handle that already owns a resource
func AlreadyOwning(resource string) *Error {
	return &Error{
		Phase:    PhaseAcquire,
		Kind:     KindAlreadyOwning,
		Resource: resource,
		Detail:   "handle already owns a resource",
	}
}

// DoubleRelease reports a second destruction of the same resource or block
func DoubleRelease(phase Phase, what string, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDoubleRelease,
		Detail: fmt.Sprintf("%s %v already released", what, id),
		Value:  id,
	}
}

// OutstandingBorrow reports a destroy or transfer attempted while borrowed
func OutstandingBorrow(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOutstandingBorrow,
		Resource: resource,
		Detail:   "resource is borrowed",
	}
}

// StaleBorrow reports use of a borrow that outlived its owner's resource
func StaleBorrow(resource string) *Error {
	return &Error{
		Phase:    PhaseBorrow,
		Kind:     KindStaleBorrow,
		Resource: resource,
		Detail:   "owning handle was reset or transferred",
	}
}

// Released reports access to a resource after its destruction
func Released(phase Phase, resource string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindReleased,
		Resource: resource,
		Detail:   "resource already destroyed",
	}
}

// Closed reports use of a closed store or table
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %d length %d out of bounds (size %d)", offset, length, size),
		Value:  offset,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch reports a handle whose stored value is not of the expected type
func TypeMismatch(phase Phase, want string, got any) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Resource: want,
		Detail:   fmt.Sprintf("stored value is %T", got),
		Value:    got,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Panicked converts a recovered panic value into an error
func Panicked(phase Phase, resource string, v any) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindPanic,
		Resource: resource,
		Detail:   fmt.Sprint(v),
		Value:    v,
	}
}
