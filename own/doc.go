// Package own provides Own, an exclusive-ownership handle over values held
// in a resource.Table.
//
// An Own is either empty or owns exactly one resource. Ownership can move
// (Transfer) but never duplicate, and the resource is destroyed exactly
// once: by Reset, ResetTo or Close on whichever handle holds it last.
// Borrow and With give non-owning access; a Ref goes stale once its owner
// lets go, and a With callback pins the resource so it cannot be reset or
// transferred underneath it.
//
//	h, err := own.Acquire(table, d)
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//
//	err = h.With(func(d *dud.Dud) error {
//		msg, err := d.Talk()
//		fmt.Println(msg)
//		return err
//	})
package own
