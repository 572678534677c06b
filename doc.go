// Package lifetime models exactly-bounded resource lifetimes in Go.
//
// A resource is created once and destroyed once. Between those two points it
// has exactly one owner, and ownership can move but never be copied.
//
// # Architecture Overview
//
//	lifetime/        Root package with the Memory and Allocator interfaces
//	├── heap/        Free store over a wazero linear memory
//	├── resource/    Handle table with borrow counting and observers
//	├── dud/         Example owned resource whose state lives in the heap
//	├── own/         Single-owner handle: transfer, reset, borrow
//	├── scope/       Structured scope frames with LIFO cleanup
//	├── trace/       SQLite lifecycle recorder and leak audit
//	└── errors/      Structured error types
//
// # Quick Start
//
//	store, err := heap.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close(ctx)
//
//	table := resource.NewTable()
//	d, _ := dud.NewWithPoints(store, 1)
//
//	h, _ := own.Acquire(table, d)
//	defer h.Close()
//
//	ref, _ := h.Borrow()
//	d, _ = ref.Get()
//	msg, _ := d.Talk() // "talking talking talking 1"
//
// # Stack and Free Store
//
// A scope.Frame plays the role of a stack frame: everything bound to it is
// released when the frame exits, in reverse order, including on error or
// panic. An own.Own handle plays the role of a free-store pointer: it can be
// transferred out of the frame that created it and is released by whoever
// owns it last.
//
// # Thread Safety
//
// heap.Store and resource.UnifiedTable are safe for concurrent use, and a
// scope.Frame accepts bindings from several goroutines. own.Own is NOT safe
// for concurrent use; hand it between goroutines with Transfer.
package lifetime
