package resource

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/wippyai/lifetime/errors"
)

// UnifiedTable implements the Table interface using a LocalBackend for storage.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

var _ Table = (*UnifiedTable)(nil)

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *UnifiedTable) Insert(typeID TypeID, value any) (Handle, error) {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0, errors.Closed(errors.PhaseAcquire, "resource table")
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *UnifiedTable) GetTyped(handle Handle, typeID TypeID) (any, bool) {
	actualTypeID, ok := t.backend.TypeID(handle)
	if !ok || actualTypeID != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Remove drops a resource and runs its destructor. The entry is gone even if
// the destructor fails; the destructor's error is returned with the value.
func (t *UnifiedTable) Remove(handle Handle) (any, error) {
	typeID, _ := t.backend.TypeID(handle)
	value, err := t.backend.Drop(handle)
	if err != nil {
		return nil, err
	}

	var dropErr error
	if d, ok := value.(Dropper); ok {
		dropErr = d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return value, dropErr
}

// Take removes an entry without running its destructor.
func (t *UnifiedTable) Take(handle Handle) (any, error) {
	typeID, _ := t.backend.TypeID(handle)
	value, err := t.backend.Drop(handle)
	if err != nil {
		return nil, err
	}

	t.notify(Event{
		Type:   EventTaken,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return value, nil
}

// Borrow marks the resource as lent out.
func (t *UnifiedTable) Borrow(handle Handle) bool {
	if !t.backend.Borrow(handle) {
		return false
	}
	t.notifyHandle(EventBorrowed, handle)
	return true
}

// ReturnBorrow ends one borrow.
func (t *UnifiedTable) ReturnBorrow(handle Handle) bool {
	if !t.backend.ReturnBorrow(handle) {
		return false
	}
	t.notifyHandle(EventBorrowReturned, handle)
	return true
}

// BorrowCount returns the number of outstanding borrows for a handle.
func (t *UnifiedTable) BorrowCount(handle Handle) (uint32, bool) {
	return t.backend.BorrowCount(handle)
}

// Transferred records that ownership of the handle moved to a new owner.
func (t *UnifiedTable) Transferred(handle Handle) {
	t.notifyHandle(EventTransferred, handle)
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of active resources.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Clear drops all resources. Borrowed entries are skipped and reported.
func (t *UnifiedTable) Clear() error {
	// Collect handles first to avoid holding lock during Remove
	var handles []Handle
	t.backend.Each(func(h Handle, typeID TypeID, value any) bool {
		handles = append(handles, h)
		return true
	})

	var err error
	for _, h := range handles {
		_, rerr := t.Remove(h)
		err = multierr.Append(err, rerr)
	}
	return err
}

// Close releases all resources and stops accepting operations. Observers
// see an EventDropped for every entry; entries still borrowed are reported
// and then dropped without notification.
func (t *UnifiedTable) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	err := t.Clear()
	return multierr.Append(err, t.backend.Close())
}

// Backend returns the underlying backend.
func (t *UnifiedTable) Backend() *LocalBackend {
	return t.backend
}

func (t *UnifiedTable) notifyHandle(typ EventType, handle Handle) {
	typeID, _ := t.backend.TypeID(handle)
	value, _ := t.backend.Get(handle)
	t.notify(Event{
		Type:   typ,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
