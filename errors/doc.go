// Package errors provides structured error types for resource lifetimes.
//
// Errors are categorized by Phase (which lifecycle operation failed) and Kind
// (error category). Contract violations such as borrowing from an empty
// handle are reported as values, never as panics.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseReset, errors.KindOutstandingBorrow).
//		Resource("*dud.Dud").
//		Detail("%d borrows", n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.EmptyHandle(errors.PhaseBorrow, "*dud.Dud")
//	err := errors.DoubleRelease(errors.PhaseFree, "block", ptr)
//
// The Err* sentinels have no Phase and match any error of the same Kind:
//
//	if errors.Is(err, errors.ErrEmptyHandle) { ... }
package errors
