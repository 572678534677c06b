package scope

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/lifetime/errors"
	"github.com/wippyai/lifetime/own"
	"github.com/wippyai/lifetime/resource"
)

type cleanup struct {
	name string
	fn   func() error
}

// Frame is a lexical lifetime. Everything bound to a frame is released
// when the frame exits, in reverse order of binding.
type Frame struct {
	ctx      context.Context
	id       xid.ID
	mu       sync.Mutex
	cleanups []cleanup
	done     bool
}

// Run creates a frame, calls fn with it and releases the frame's bindings
// when fn returns, fails or panics. Release errors are joined with fn's
// error. A panic in fn is re-raised after cleanup.
func Run(ctx context.Context, fn func(*Frame) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := &Frame{ctx: ctx, id: xid.New()}
	log := Logger().With(zap.Stringer("frame", f.id))
	log.Debug("frame entered")

	defer func() {
		r := recover()
		if r != nil {
			log.Warn("frame unwinding after panic", zap.Any("panic", r))
		}

		err = multierr.Append(err, f.unwind(log))
		log.Debug("frame exited", zap.Error(err))

		if r != nil {
			panic(r)
		}
	}()

	return fn(f)
}

// ID returns the frame's identifier.
func (f *Frame) ID() xid.ID {
	return f.id
}

// Context returns the context the frame was started with.
func (f *Frame) Context() context.Context {
	return f.ctx
}

// Defer registers fn to run when the frame exits. On a frame that has
// already exited fn runs immediately and errors.ErrClosed is returned
// along with fn's own error.
func (f *Frame) Defer(name string, fn func() error) error {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		Logger().Warn("defer on exited frame",
			zap.Stringer("frame", f.id),
			zap.String("name", name))
		return multierr.Append(errors.Closed(errors.PhaseScope, "frame"), fn())
	}
	f.cleanups = append(f.cleanups, cleanup{name: name, fn: fn})
	f.mu.Unlock()
	return nil
}

// Bind ties d to the frame: d.Drop runs when the frame exits.
func (f *Frame) Bind(d resource.Dropper) error {
	if d == nil {
		return errors.InvalidInput(errors.PhaseScope, "nil dropper")
	}
	return f.Defer(fmt.Sprintf("%T", d), d.Drop)
}

// Len returns the number of pending cleanups.
func (f *Frame) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cleanups)
}

func (f *Frame) exited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *Frame) unwind(log *zap.Logger) error {
	f.mu.Lock()
	cleanups := f.cleanups
	f.cleanups = nil
	f.done = true
	f.mu.Unlock()

	var err error
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if cerr := runCleanup(c); cerr != nil {
			log.Warn("cleanup failed",
				zap.String("name", c.name),
				zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// runCleanup turns a panicking cleanup into an error so the remaining
// cleanups still run.
func runCleanup(c cleanup) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panicked(errors.PhaseScope, c.name, r)
		}
	}()
	return c.fn()
}

// Own acquires v into a handle whose Reset runs when the frame exits.
// Transferring the handle's resource out before then lets it outlive the
// frame; the frame's reset then finds the handle empty.
// On an exited frame v is not acquired.
func Own[T any](f *Frame, table resource.Table, v T) (*own.Own[T], error) {
	if f.exited() {
		return nil, errors.Closed(errors.PhaseScope, "frame")
	}

	h, err := own.Acquire(table, v)
	if err != nil {
		return nil, err
	}
	if err := f.Defer(h.String(), h.Reset); err != nil {
		return nil, err
	}
	return h, nil
}
