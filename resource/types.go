package resource

import (
	"fmt"
	"reflect"
	"sync"
)

// Handle is an opaque reference to a resource in a table.
// The low 32 bits are the slot (1-based), the high 32 bits the slot's
// generation. Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

// Slot returns the 1-based table slot.
func (h Handle) Slot() uint32 { return uint32(h) }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Slot(), h.Generation())
}

// TypeID identifies the Go type stored behind a handle.
type TypeID uint32

var (
	typeIDs    sync.Map // reflect.Type -> TypeID
	typeIDMu   sync.Mutex
	nextTypeID TypeID = 1
)

// TypeIDFor returns the process-wide type ID for T, assigning one on first use.
func TypeIDFor[T any]() TypeID {
	typ := reflect.TypeFor[T]()
	if id, ok := typeIDs.Load(typ); ok {
		return id.(TypeID)
	}

	typeIDMu.Lock()
	defer typeIDMu.Unlock()
	if id, ok := typeIDs.Load(typ); ok {
		return id.(TypeID)
	}
	id := nextTypeID
	nextTypeID++
	typeIDs.Store(typ, id)
	return id
}

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
	EventTransferred
	EventTaken
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	case EventTransferred:
		return "transferred"
	case EventTaken:
		return "taken"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for resources.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(typeID TypeID, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes a resource and returns the value whose destructor should run.
	// Fails with ErrDoubleRelease if the handle is not live and with
	// ErrOutstandingBorrow if it is borrowed.
	Drop(handle Handle) (any, error)

	// Borrow increments the borrow count for a handle.
	Borrow(handle Handle) bool

	// ReturnBorrow decrements the borrow count for a handle.
	ReturnBorrow(handle Handle) bool

	// Close releases all resources held by the backend.
	Close() error
}

// Table manages resources with type information and observer support.
type Table interface {
	// Insert adds a value and returns its handle.
	Insert(typeID TypeID, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// GetTyped retrieves a value only if it matches the expected type.
	GetTyped(handle Handle, typeID TypeID) (any, bool)

	// Remove drops a resource, runs its destructor, and returns the value.
	Remove(handle Handle) (any, error)

	// Borrow marks the resource as lent out; Remove is refused until returned.
	Borrow(handle Handle) bool

	// ReturnBorrow ends one borrow.
	ReturnBorrow(handle Handle) bool

	// BorrowCount returns the number of outstanding borrows.
	BorrowCount(handle Handle) (uint32, bool)

	// Take removes an entry without running its destructor; the caller
	// becomes responsible for the returned value.
	Take(handle Handle) (any, error)

	// Transferred records that ownership of the handle moved.
	Transferred(handle Handle)

	// Subscribe adds an observer for lifecycle events.
	Subscribe(Observer)

	// Unsubscribe removes an observer.
	Unsubscribe(Observer)

	// Len returns the number of active resources.
	Len() int

	// Clear drops all resources.
	Clear() error

	// Close releases all resources and stops accepting operations.
	Close() error
}

// Dropper is implemented by resource values that need cleanup.
// Drop runs exactly once, when the owning table entry is removed.
type Dropper interface {
	Drop() error
}
