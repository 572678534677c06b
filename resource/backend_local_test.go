package resource

import (
	"errors"
	"sync"
	"testing"

	lterrors "github.com/wippyai/lifetime/errors"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	// Create a resource
	handle, err := b.Create(1, "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	// Get it back
	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	// Drop it
	val, err = b.Drop(handle)
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	// Should not exist anymore
	_, ok = b.Get(handle)
	if ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_DoubleDrop(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(1, "x")
	if _, err := b.Drop(handle); err != nil {
		t.Fatalf("first Drop failed: %v", err)
	}

	_, err := b.Drop(handle)
	if !errors.Is(err, lterrors.ErrDoubleRelease) {
		t.Fatalf("Expected ErrDoubleRelease, got %v", err)
	}
}

func TestLocalBackend_TypeID(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(7, 100)

	typeID, ok := b.TypeID(handle)
	if !ok {
		t.Fatal("TypeID failed")
	}
	if typeID != 7 {
		t.Fatalf("Expected typeID 7, got %d", typeID)
	}
}

func TestLocalBackend_Borrow(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(1, 100)

	// Borrow
	if !b.Borrow(handle) {
		t.Fatal("Borrow failed")
	}
	if n, _ := b.BorrowCount(handle); n != 1 {
		t.Fatalf("Expected 1 borrow, got %d", n)
	}

	// Cannot drop while borrowed
	_, err := b.Drop(handle)
	if !errors.Is(err, lterrors.ErrOutstandingBorrow) {
		t.Fatalf("Expected ErrOutstandingBorrow, got %v", err)
	}

	// Return borrow
	if !b.ReturnBorrow(handle) {
		t.Fatal("ReturnBorrow failed")
	}

	// Extra return fails
	if b.ReturnBorrow(handle) {
		t.Fatal("ReturnBorrow without borrow should fail")
	}

	// Now can drop
	if _, err := b.Drop(handle); err != nil {
		t.Fatalf("Drop should succeed after returning borrow: %v", err)
	}
}

func TestLocalBackend_MultipleBorrows(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(1, 100)

	// Multiple borrows
	for i := 0; i < 5; i++ {
		if !b.Borrow(handle) {
			t.Fatalf("Borrow %d failed", i)
		}
	}

	// Cannot drop
	if _, err := b.Drop(handle); err == nil {
		t.Fatal("Drop should fail with outstanding borrows")
	}

	// Return all borrows
	for i := 0; i < 5; i++ {
		if !b.ReturnBorrow(handle) {
			t.Fatalf("ReturnBorrow %d failed", i)
		}
	}

	// Now can drop
	if _, err := b.Drop(handle); err != nil {
		t.Fatalf("Drop should succeed after returning all borrows: %v", err)
	}
}

func TestLocalBackend_HandleReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(1, 1)
	h2, _ := b.Create(1, 2)
	h3, _ := b.Create(1, 3)

	b.Drop(h2)

	// The freed slot is reused under a new generation
	h4, _ := b.Create(1, 4)
	if h4.Slot() != h2.Slot() {
		t.Fatalf("Expected slot %d reused, got %d", h2.Slot(), h4.Slot())
	}
	if h4.Generation() == h2.Generation() {
		t.Fatal("Reused slot must get a new generation")
	}

	// The stale handle does not alias the new resource
	if _, ok := b.Get(h2); ok {
		t.Fatal("Stale handle should not resolve")
	}
	if _, err := b.Drop(h2); !errors.Is(err, lterrors.ErrDoubleRelease) {
		t.Fatalf("Dropping stale handle: expected ErrDoubleRelease, got %v", err)
	}
	if v, ok := b.Get(h4); !ok || v != 4 {
		t.Fatalf("h4 = %v, %v; want 4, true", v, ok)
	}

	for _, h := range []Handle{h1, h3, h4} {
		if _, ok := b.Get(h); !ok {
			t.Fatalf("%v should still be valid", h)
		}
	}
}

type countingDropper struct {
	count int
}

func (d *countingDropper) Drop() error {
	d.count++
	return nil
}

type failingDropper struct{}

func (failingDropper) Drop() error {
	return errors.New("drop failed")
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	d1 := &countingDropper{}
	d2 := &countingDropper{}
	b.Create(1, d1)
	b.Create(1, d2)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d1.count != 1 || d2.count != 1 {
		t.Fatalf("Expected each Dropper called once, got %d and %d", d1.count, d2.count)
	}

	// Second close is a no-op
	if err := b.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if d1.count != 1 {
		t.Fatal("Dropper called again on second Close")
	}

	// Operations should fail after close
	_, err := b.Create(1, "test")
	if !errors.Is(err, lterrors.ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}
}

func TestLocalBackend_CloseCollectsErrors(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, failingDropper{})
	b.Create(1, failingDropper{})
	b.Create(1, &countingDropper{})

	if err := b.Close(); err == nil {
		t.Fatal("Expected Close to report Drop errors")
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(1, id)
			b.Borrow(h)
			b.ReturnBorrow(h)
			b.Drop(h)
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected Len() == 0, got %d", b.Len())
	}
}

func TestLocalBackend_Len(t *testing.T) {
	b := NewLocalBackend()

	if b.Len() != 0 {
		t.Fatal("Expected Len() == 0 initially")
	}

	h1, _ := b.Create(1, "a")
	h2, _ := b.Create(1, "b")
	b.Create(1, "c")

	if b.Len() != 3 {
		t.Fatalf("Expected Len() == 3, got %d", b.Len())
	}

	b.Drop(h1)
	if b.Len() != 2 {
		t.Fatalf("Expected Len() == 2, got %d", b.Len())
	}

	b.Drop(h2)
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, "a")
	b.Create(2, "b")
	b.Create(1, "c")

	count := 0
	b.Each(func(h Handle, typeID TypeID, value any) bool {
		if _, ok := b.Get(h); !ok {
			t.Errorf("Each yielded unresolvable handle %v", h)
		}
		count++
		return true
	})

	if count != 3 {
		t.Fatalf("Expected to iterate over 3 items, got %d", count)
	}

	// Test early termination
	count = 0
	b.Each(func(h Handle, typeID TypeID, value any) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	// Handle 0 is always invalid
	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be invalid")
	}
	if _, ok := b.TypeID(0); ok {
		t.Fatal("Handle 0 should be invalid for TypeID")
	}
	if b.Borrow(0) {
		t.Fatal("Handle 0 should fail Borrow")
	}
	if b.ReturnBorrow(0) {
		t.Fatal("Handle 0 should fail ReturnBorrow")
	}
	if _, err := b.Drop(0); err == nil {
		t.Fatal("Handle 0 should fail Drop")
	}

	// Non-existent handle
	if _, ok := b.Get(makeHandle(999, 1)); ok {
		t.Fatal("Non-existent handle should be invalid")
	}
}

func TestHandle_Parts(t *testing.T) {
	h := makeHandle(3, 5)
	if h.Slot() != 3 || h.Generation() != 5 {
		t.Fatalf("Slot/Generation = %d/%d, want 3/5", h.Slot(), h.Generation())
	}
	if h.String() != "3#5" {
		t.Fatalf("String = %q, want 3#5", h.String())
	}
}

func TestTypeIDFor(t *testing.T) {
	a := TypeIDFor[string]()
	b := TypeIDFor[int]()
	if a == 0 || b == 0 {
		t.Fatal("TypeIDFor must not return 0")
	}
	if a == b {
		t.Fatal("distinct types share a TypeID")
	}
	if TypeIDFor[string]() != a {
		t.Fatal("TypeIDFor is not stable")
	}
}
