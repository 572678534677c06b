package heap

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/lifetime"
	"github.com/wippyai/lifetime/errors"
)

var _ lifetime.Memory = (*memoryView)(nil)
var _ lifetime.MemorySizer = (*memoryView)(nil)

// memoryView adapts wazero api.Memory to lifetime.Memory.
type memoryView struct {
	mem api.Memory
}

func wrapMemory(mem api.Memory) *memoryView {
	if mem == nil {
		return nil
	}
	return &memoryView{mem: mem}
}

// Read reads bytes from memory. The returned slice is a copy.
func (m *memoryView) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseAccess, offset, length, m.mem.Size())
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write writes bytes to memory.
func (m *memoryView) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseAccess, offset, uint32(len(data)), m.mem.Size())
	}
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *memoryView) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseAccess, offset, 4, m.mem.Size())
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *memoryView) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseAccess, offset, 4, m.mem.Size())
	}
	return nil
}

// Size returns the memory size in bytes.
func (m *memoryView) Size() uint32 {
	return m.mem.Size()
}
