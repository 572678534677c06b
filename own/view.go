package own

// View is a read-only window onto an Own. Code holding a View can look at
// and borrow the resource but cannot reset, transfer or release it.
type View[T any] struct {
	o *Own[T]
}

// IsEmpty reports whether the underlying handle owns nothing.
func (v View[T]) IsEmpty() bool {
	return v.o.IsEmpty()
}

// Borrow returns a non-owning reference to the resource.
func (v View[T]) Borrow() (Ref[T], error) {
	return v.o.Borrow()
}

// With calls fn with the resource held as borrowed.
func (v View[T]) With(fn func(T) error) error {
	return v.o.With(fn)
}

func (v View[T]) String() string {
	return v.o.String()
}
