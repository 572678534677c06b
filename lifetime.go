package lifetime

// Memory is byte-addressable storage backing the free store.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of the backing memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator hands out and takes back blocks of Memory.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
