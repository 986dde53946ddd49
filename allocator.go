package arena

import (
	"math"
	"unsafe"
)

// Allocator is the capability a memory source must provide. The arena
// obtains its chunks through it and vec.Vec grows through it.
//
// Blocks passed to Grow, Shrink and Deallocate must have been returned by
// the same Allocator together with the given old layout.
type Allocator interface {
	// Allocate returns a block of exactly l.Size bytes whose first byte is
	// aligned to l.Align. Contents are unspecified.
	Allocate(l Layout) ([]byte, error)

	// Grow returns a block for newLayout holding the first oldLayout.Size
	// bytes of block. newLayout.Size must be >= oldLayout.Size.
	Grow(block []byte, oldLayout, newLayout Layout) ([]byte, error)

	// Shrink returns a block for newLayout holding the first newLayout.Size
	// bytes of block. newLayout.Size must be <= oldLayout.Size.
	Shrink(block []byte, oldLayout, newLayout Layout) ([]byte, error)

	// Deallocate returns block to the allocator.
	Deallocate(block []byte, l Layout)
}

// MaxHeapBlock is the largest block HeapAllocator will attempt to allocate.
// Larger requests fail with ErrAllocFailed instead of crashing the runtime.
const MaxHeapBlock = min(math.MaxInt>>1, 1<<46)

// DefaultAllocator is the Go heap allocator used when no backing is configured.
// It is safe to use from multiple goroutines.
var DefaultAllocator Allocator = NewHeapAllocator()

// HeapAllocator serves blocks from the Go heap. Blocks are reclaimed by the
// garbage collector once the last reference to them is dropped, so
// Deallocate only forgets the block.
//
// Blocks are allocated as no-pointer memory: values stored in them must not
// hold the only reference to other Go heap objects.
type HeapAllocator struct{}

// NewHeapAllocator returns a HeapAllocator.
func NewHeapAllocator() *HeapAllocator { return &HeapAllocator{} }

// Allocate implements Allocator.
func (h *HeapAllocator) Allocate(l Layout) ([]byte, error) {
	if !isPowerOfTwo(l.Align) {
		return nil, newAllocError(l, ErrInvalidLayout)
	}
	if l.Size > MaxHeapBlock || l.Align > MaxHeapBlock-l.Size {
		return nil, newAllocError(l, nil)
	}
	size := int(l.Size)
	if l.Align <= heapMinAlign {
		buf := make([]byte, size)
		if size == 0 || isMultipleOf(uintptr(unsafe.Pointer(unsafe.SliceData(buf))), l.Align) {
			return buf, nil
		}
	}
	// Pad so an aligned sub-slice always fits.
	pad := int(l.Align) - 1
	buf := make([]byte, size+pad)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := int(roundUp(addr, l.Align) - addr)
	return buf[shift : size+shift : size+shift], nil
}

// Grow implements Allocator.
func (h *HeapAllocator) Grow(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	if newLayout.Size == oldLayout.Size && newLayout.Align <= oldLayout.Align {
		return block, nil
	}
	buf, err := h.Allocate(newLayout)
	if err != nil {
		return nil, err
	}
	copy(buf, block[:oldLayout.Size])
	return buf, nil
}

// Shrink implements Allocator. The smaller block is copied out so the
// collector can reclaim the original.
func (h *HeapAllocator) Shrink(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	if newLayout.Size == oldLayout.Size {
		return block, nil
	}
	buf, err := h.Allocate(newLayout)
	if err != nil {
		return nil, err
	}
	copy(buf, block[:newLayout.Size])
	return buf, nil
}

// Deallocate implements Allocator.
func (h *HeapAllocator) Deallocate([]byte, Layout) {}

// heapMinAlign is the alignment the Go allocator guarantees for blocks of
// any size class.
const heapMinAlign = 8
