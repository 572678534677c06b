// Package heap provides the free store that owned resources live in.
//
// A Store wraps a single wazero linear memory and hands out blocks from it
// with a first-fit allocator. Address 0 is never handed out, so a zero
// pointer always means "no block".
//
//	store, err := heap.New(ctx)
//	defer store.Close(ctx)
//
//	ptr, err := store.Alloc(4, 4)
//	store.Memory().WriteU32(ptr, 42)
//	err = store.Release(ptr)
//
// Every block must be released exactly once. A second Release of the same
// address fails with errors.ErrDoubleRelease and leaves the store unchanged.
// Stats reports live blocks, which tests use to prove the absence of leaks.
//
// Linear memory grows by whole 64KB pages and never shrinks; freed blocks are
// coalesced and reused, and a free span touching the high-water mark lowers
// it.
package heap
