package trace

import (
	"context"
	"path/filepath"
	"runtime"
	"weak"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wippyai/lifetime/dud"
	"github.com/wippyai/lifetime/errors"
	"github.com/wippyai/lifetime/heap"
	"github.com/wippyai/lifetime/own"
	"github.com/wippyai/lifetime/resource"
	"github.com/wippyai/lifetime/scope"
)

var _ = ginkgo.Describe("Recorder", func() {
	var (
		ctx   context.Context
		store *heap.Store
		table *resource.UnifiedTable
		rec   *Recorder
	)

	ginkgo.BeforeEach(func() {
		var err error
		ctx = context.Background()

		store, err = heap.New(ctx)
		Expect(err).NotTo(HaveOccurred())

		rec, err = New()
		Expect(err).NotTo(HaveOccurred())

		table = resource.NewTable()
		table.Subscribe(rec)
	})

	ginkgo.AfterEach(func() {
		Expect(table.Close()).To(Succeed())
		Expect(rec.Close()).To(Succeed())
		Expect(store.Close(ctx)).To(Succeed())
	})

	newDud := func(points int32) *dud.Dud {
		d, err := dud.NewWithPoints(store, points)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	ginkgo.It("should record a handle's history in order", func() {
		a, err := own.Acquire(table, newDud(1))
		Expect(err).NotTo(HaveOccurred())
		handle := a.Handle()

		Expect(a.With(func(d *dud.Dud) error {
			_, err := d.Talk()
			return err
		})).To(Succeed())

		b, err := a.Transfer()
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Reset()).To(Succeed())

		entries, err := rec.Events(handle)
		Expect(err).NotTo(HaveOccurred())

		var events []string
		for _, e := range entries {
			Expect(e.Session).To(Equal(rec.Session()))
			Expect(e.Handle).To(Equal(handle))
			Expect(e.TypeID).To(Equal(resource.TypeIDFor[*dud.Dud]()))
			events = append(events, e.Event)
		}
		Expect(events).To(Equal([]string{
			"created", "borrowed", "borrow-returned", "transferred", "dropped",
		}))
		Expect(entries[len(entries)-1].Value).To(ContainSubstring("released"))
	})

	ginkgo.It("should report a clean audit when every resource is released", func() {
		for _, input := range []string{"start talking", "stay quiet"} {
			err := scope.Run(ctx, func(f *scope.Frame) error {
				h, err := scope.Own(f, table, newDud(0))
				if err != nil {
					return err
				}
				if input == "start talking" {
					return h.With(func(d *dud.Dud) error {
						_, err := d.Talk()
						return err
					})
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
		}

		report, err := rec.Audit()
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Clean()).To(BeTrue())
		Expect(report.Created).To(Equal(2))
		Expect(report.Dropped).To(Equal(2))
		Expect(store.Stats().LiveBlocks).To(BeZero())
	})

	ginkgo.It("should report resources still owned as leaked", func() {
		kept, err := own.Acquire(table, newDud(1))
		Expect(err).NotTo(HaveOccurred())

		gone, err := own.Acquire(table, newDud(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(gone.Reset()).To(Succeed())

		report, err := rec.Audit()
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Clean()).To(BeFalse())
		Expect(report.Leaked).To(ConsistOf(kept.Handle()))
		Expect(report.DoubleDropped).To(BeEmpty())

		Expect(kept.Reset()).To(Succeed())
		report, err = rec.Audit()
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Clean()).To(BeTrue())
	})

	ginkgo.It("should count released resources as taken, not leaked", func() {
		h, err := own.Acquire(table, newDud(3))
		Expect(err).NotTo(HaveOccurred())

		d, err := h.Release()
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Drop()).To(Succeed())

		report, err := rec.Audit()
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Clean()).To(BeTrue())
		Expect(report.Taken).To(Equal(1))
		Expect(report.Dropped).To(BeZero())
	})

	ginkgo.It("should flag a handle dropped twice", func() {
		h := resource.Handle(42)
		rec.OnResourceEvent(resource.Event{Type: resource.EventCreated, Handle: h})
		rec.OnResourceEvent(resource.Event{Type: resource.EventDropped, Handle: h})
		rec.OnResourceEvent(resource.Event{Type: resource.EventDropped, Handle: h})

		report, err := rec.Audit()
		Expect(err).NotTo(HaveOccurred())
		Expect(report.DoubleDropped).To(ConsistOf(h))
		Expect(report.Clean()).To(BeFalse())
	})
})

var _ = ginkgo.Describe("Recorder configuration", func() {
	ginkgo.It("should flush once a batch fills up", func() {
		rec, err := NewWithConfig(&Config{BatchSize: 2})
		Expect(err).NotTo(HaveOccurred())
		defer rec.Close()

		rec.OnResourceEvent(resource.Event{Type: resource.EventCreated, Handle: 1})
		Expect(rec.pending).To(HaveLen(1))

		rec.OnResourceEvent(resource.Event{Type: resource.EventDropped, Handle: 1})
		Expect(rec.pending).To(BeEmpty())

		var n int
		Expect(rec.db.QueryRow(`SELECT COUNT(*) FROM lifecycle`).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(2))
	})

	ginkgo.It("should persist to a database file", func() {
		path := filepath.Join(ginkgo.GinkgoT().TempDir(), "lifecycle.sqlite3")

		rec, err := NewWithConfig(&Config{Path: path})
		Expect(err).NotTo(HaveOccurred())
		session := rec.Session()
		rec.OnResourceEvent(resource.Event{Type: resource.EventCreated, Handle: 7})
		Expect(rec.Close()).To(Succeed())

		again, err := NewWithConfig(&Config{Path: path})
		Expect(err).NotTo(HaveOccurred())
		defer again.Close()
		Expect(again.Session()).NotTo(Equal(session))

		var n int
		Expect(again.db.QueryRow(
			`SELECT COUNT(*) FROM lifecycle WHERE session = ?`, session,
		).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(1))
	})

	ginkgo.It("should refuse work after Close", func() {
		rec, err := New()
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Close()).To(Succeed())
		Expect(rec.Close()).To(Succeed())

		rec.OnResourceEvent(resource.Event{Type: resource.EventCreated, Handle: 1})
		Expect(rec.pending).To(BeEmpty())

		Expect(rec.Flush()).To(MatchError(errors.ErrClosed))

		_, err = rec.Audit()
		Expect(err).To(MatchError(errors.ErrClosed))
	})
})

var _ = ginkgo.Describe("Exit hook", func() {
	ginkgo.It("should flush pending events of a live recorder", func() {
		rec, err := NewWithConfig(&Config{BatchSize: 100})
		Expect(err).NotTo(HaveOccurred())
		defer rec.Close()

		rec.OnResourceEvent(resource.Event{Type: resource.EventCreated, Handle: 3})
		flushOnExit(weak.Make(rec))()
		Expect(rec.pending).To(BeEmpty())

		var n int
		Expect(rec.db.QueryRow(`SELECT COUNT(*) FROM lifecycle`).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(1))
	})

	ginkgo.It("should do nothing for a closed recorder", func() {
		rec, err := New()
		Expect(err).NotTo(HaveOccurred())
		hook := flushOnExit(weak.Make(rec))
		Expect(rec.Close()).To(Succeed())

		Expect(hook).NotTo(Panic())
	})

	ginkgo.It("should not keep a closed recorder alive", func() {
		open := func() (weak.Pointer[Recorder], func()) {
			rec, err := New()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Close()).To(Succeed())
			return weak.Make(rec), flushOnExit(weak.Make(rec))
		}
		wp, hook := open()

		Eventually(func() bool {
			runtime.GC()
			return wp.Value() == nil
		}).Should(BeTrue())
		Expect(hook).NotTo(Panic())
	})
})
