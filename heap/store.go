package heap

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/lifetime"
	"github.com/wippyai/lifetime/errors"
)

// PageSize is the size of one linear memory page.
const PageSize = 65536

const (
	// nullGuard keeps address 0 out of circulation so a zero pointer is never valid.
	nullGuard        = 8
	defaultLimit     = 256   // 16MB
	maxLimit         = 65535 // keeps every address below 1<<32
	memoryExportName = "memory"
)

// memoryModule is a minimal module with 1 page of memory exported as "memory".
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory"
	0x02, 0x00, // kind: memory, index 0
}

// Config holds configuration for store creation
type Config struct {
	// InitialPages is the number of pages available before the first grow.
	// 0 means 1 page.
	InitialPages uint32

	// MemoryLimitPages caps the linear memory in pages (64KB each).
	// 0 means default (256 pages = 16MB). At most 65535.
	MemoryLimitPages uint32

	// Interpreter selects the wazero interpreter instead of the compiler.
	Interpreter bool
}

// Stats is a snapshot of store accounting.
type Stats struct {
	LiveBlocks int
	LiveBytes  uint32
	Allocs     uint64
	Frees      uint64
	Pages      uint32
}

type block struct {
	size  uint32
	align uint32
}

type span struct {
	ptr  uint32
	size uint32
}

func (s span) end() uint32 { return s.ptr + s.size }

// Store is the free store: a first-fit allocator over a wazero linear memory.
// Every block handed out by Alloc stays live until exactly one Release.
// Thread-safe.
type Store struct {
	runtime wazero.Runtime
	mem     *memoryView
	live    map[uint32]block
	free    []span
	top     uint32
	allocs  uint64
	frees   uint64
	mu      sync.Mutex
	closed  bool
}

var _ lifetime.Allocator = (*Store)(nil)

// New creates a store with default configuration.
func New(ctx context.Context) (*Store, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a store backed by a fresh wazero runtime.
func NewWithConfig(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	limit := cfg.MemoryLimitPages
	if limit == 0 {
		limit = defaultLimit
	}
	initial := cfg.InitialPages
	if initial == 0 {
		initial = 1
	}
	if limit > maxLimit {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("memory limit %d pages exceeds %d", limit, maxLimit))
	}
	if initial > limit {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("initial pages %d exceed limit %d", initial, limit))
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	runtimeCfg = runtimeCfg.WithMemoryLimitPages(limit)

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile memory module: %w", err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate memory module: %w", err)
	}

	mem := mod.ExportedMemory(memoryExportName)
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("memory module has no %q export", memoryExportName)
	}
	if initial > 1 {
		if _, ok := mem.Grow(initial - 1); !ok {
			_ = rt.Close(ctx)
			return nil, errors.AllocationFailed((initial-1)*PageSize, 1, nil)
		}
	}

	Logger().Debug("heap store created",
		zap.Uint32("pages", initial),
		zap.Uint32("limit_pages", limit))

	return &Store{
		runtime: rt,
		mem:     wrapMemory(mem),
		live:    make(map[uint32]block),
		top:     nullGuard,
	}, nil
}

// Memory returns the store's backing memory.
func (s *Store) Memory() lifetime.Memory {
	return s.mem
}

// Alloc reserves size bytes aligned to align and returns the block address.
func (s *Store) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "zero-sized allocation")
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, fmt.Sprintf("alignment %d is not a power of two", align))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.Closed(errors.PhaseAlloc, "heap store")
	}

	ptr, ok := s.takeFree(size, align)
	if !ok {
		var err error
		ptr, err = s.bump(size, align)
		if err != nil {
			return 0, err
		}
	}

	s.live[ptr] = block{size: size, align: align}
	s.allocs++

	Logger().Debug("alloc",
		zap.Uint32("ptr", ptr),
		zap.Uint32("size", size))

	return ptr, nil
}

// Free implements lifetime.Allocator. A bad free is logged, not returned;
// use Release to observe the error.
func (s *Store) Free(ptr, size, align uint32) {
	if err := s.Release(ptr); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Uint32("align", align),
			zap.Error(err))
	}
}

// Release returns the block at ptr to the store. Releasing an address that
// is not live fails with ErrDoubleRelease and changes nothing.
func (s *Store) Release(ptr uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.Closed(errors.PhaseFree, "heap store")
	}

	b, ok := s.live[ptr]
	if !ok {
		return errors.DoubleRelease(errors.PhaseFree, "block", ptr)
	}
	delete(s.live, ptr)
	s.frees++

	// Scrub so a dangling read sees zeroes rather than the old value.
	if err := s.mem.Write(ptr, make([]byte, b.size)); err != nil {
		return err
	}

	s.putFree(span{ptr: ptr, size: b.size})

	Logger().Debug("free",
		zap.Uint32("ptr", ptr),
		zap.Uint32("size", b.size))

	return nil
}

// Live reports whether ptr is a live block.
func (s *Store) Live(ptr uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[ptr]
	return ok
}

// Stats returns a snapshot of store accounting.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		LiveBlocks: len(s.live),
		Allocs:     s.allocs,
		Frees:      s.frees,
	}
	for _, b := range s.live {
		st.LiveBytes += b.size
	}
	if !s.closed {
		st.Pages = s.mem.Size() / PageSize
	}
	return st
}

// Size returns the current memory size in bytes.
func (s *Store) Size() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.mem.Size()
}

// Close tears down the wazero runtime. Blocks still live are reported as leaks.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if n := len(s.live); n > 0 {
		Logger().Warn("heap store closed with live blocks",
			zap.Int("blocks", n))
	}

	s.live = nil
	s.free = nil
	return s.runtime.Close(ctx)
}

// takeFree carves an aligned block out of the first free span that fits.
func (s *Store) takeFree(size, align uint32) (uint32, bool) {
	for i, sp := range s.free {
		aligned := alignUp(sp.ptr, align)
		if aligned < sp.ptr || aligned+size > sp.end() || aligned+size < aligned {
			continue
		}

		var rest []span
		if aligned > sp.ptr {
			rest = append(rest, span{ptr: sp.ptr, size: aligned - sp.ptr})
		}
		if tail := aligned + size; tail < sp.end() {
			rest = append(rest, span{ptr: tail, size: sp.end() - tail})
		}

		s.free = append(s.free[:i], append(rest, s.free[i+1:]...)...)
		return aligned, true
	}
	return 0, false
}

// bump extends the high-water mark, growing memory by whole pages if needed.
func (s *Store) bump(size, align uint32) (uint32, error) {
	aligned := alignUp(s.top, align)
	end := uint64(aligned) + uint64(size)
	if end >= 1<<32 {
		return 0, errors.AllocationFailed(size, align, nil)
	}

	if cur := uint64(s.mem.Size()); end > cur {
		need := uint32((end - cur + PageSize - 1) / PageSize)
		if _, ok := s.mem.mem.Grow(need); !ok {
			return 0, errors.AllocationFailed(size, align,
				fmt.Errorf("cannot grow memory by %d pages", need))
		}
		Logger().Debug("heap grown",
			zap.Uint32("delta_pages", need),
			zap.Uint32("pages", s.mem.Size()/PageSize))
	}

	if aligned > s.top {
		s.putFree(span{ptr: s.top, size: aligned - s.top})
	}
	s.top = uint32(end)
	return aligned, nil
}

// putFree inserts sp keeping the list sorted and coalesced. A span that ends
// at the high-water mark lowers it instead.
func (s *Store) putFree(sp span) {
	i := sort.Search(len(s.free), func(i int) bool { return s.free[i].ptr >= sp.ptr })
	s.free = append(s.free, span{})
	copy(s.free[i+1:], s.free[i:])
	s.free[i] = sp

	if i+1 < len(s.free) && s.free[i].end() == s.free[i+1].ptr {
		s.free[i].size += s.free[i+1].size
		s.free = append(s.free[:i+1], s.free[i+2:]...)
	}
	if i > 0 && s.free[i-1].end() == s.free[i].ptr {
		s.free[i-1].size += s.free[i].size
		s.free = append(s.free[:i], s.free[i+1:]...)
	}

	if last := len(s.free) - 1; last >= 0 && s.free[last].end() == s.top {
		s.top = s.free[last].ptr
		s.free = s.free[:last]
	}
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
