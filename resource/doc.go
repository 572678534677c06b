// Package resource provides the handle table behind owned resources.
//
// A table maps opaque handles to Go values and owns their destruction:
// removing an entry runs the value's Dropper exactly once. Higher-level
// ownership (own.Own) is built on top of it.
//
// # Resource Lifecycle
//
//	insert  - the table takes ownership and issues a handle
//	borrow  - temporary access; removal is refused while borrowed
//	remove  - destruction; the Dropper runs and the handle goes stale
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle, err := table.Insert(typeID, myValue)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Remove, running the destructor
//	value, err := table.Remove(handle)
//
// # Generations
//
// Freed slots are reused, but each reuse bumps the slot's generation, which
// is part of the handle. A handle kept after its resource was removed never
// resolves to the slot's next occupant, and removing it again fails with
// errors.ErrDoubleRelease.
//
// # Type Safety
//
// Each Go type gets a process-wide TypeID:
//
//	id := resource.TypeIDFor[*dud.Dud]()
//	value, ok := table.GetTyped(handle, id)
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	table.Subscribe(observer)
//
//	func (o *counter) OnResourceEvent(e resource.Event) {
//	    switch e.Type {
//	    case resource.EventCreated:
//	        o.created++
//	    case resource.EventDropped:
//	        o.dropped++
//	    }
//	}
//
// # Memory Management
//
// Entries are not garbage collected. Whoever owns a handle must Remove it;
// Close drops everything still live, for teardown.
package resource
