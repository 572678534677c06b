package own_test

import (
	"context"
	"fmt"

	"github.com/wippyai/lifetime/dud"
	"github.com/wippyai/lifetime/heap"
	"github.com/wippyai/lifetime/own"
	"github.com/wippyai/lifetime/resource"
)

func Example() {
	ctx := context.Background()
	store, _ := heap.New(ctx)
	defer store.Close(ctx)

	table := resource.NewTable()
	defer table.Close()

	d, _ := dud.NewWithPoints(store, 1)
	a, _ := own.Acquire(table, d)

	b, _ := a.Transfer()
	fmt.Println("a empty:", a.IsEmpty())

	_ = b.With(func(d *dud.Dud) error {
		msg, err := d.Talk()
		fmt.Println(msg)
		return err
	})

	_ = b.Reset()
	_, err := b.Borrow()
	fmt.Println(err != nil, store.Stats().LiveBlocks)

	// Output:
	// a empty: true
	// talking talking talking 1
	// true 0
}
