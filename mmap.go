package arena

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// MmapAllocator serves blocks from anonymous private memory mappings. Blocks
// live outside the Go heap and are returned to the operating system as soon
// as they are deallocated, which makes it a good chunk source for arenas that
// are reset often but must not hold on to peak memory.
//
// Alignment is limited to the page size. Zero-sized requests are served
// without a mapping.
type MmapAllocator struct {
	pageSize uintptr
}

// NewMmapAllocator returns an MmapAllocator.
func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{pageSize: uintptr(os.Getpagesize())}
}

// Allocate implements Allocator.
func (m *MmapAllocator) Allocate(l Layout) ([]byte, error) {
	if !isPowerOfTwo(l.Align) || l.Align > m.pageSize {
		return nil, newAllocError(l, errors.Wrapf(ErrInvalidLayout, "mmap alignment %d exceeds page size %d", l.Align, m.pageSize))
	}
	if l.Size == 0 {
		return []byte{}, nil
	}
	region, err := mmap.MapRegion(nil, int(l.Size), mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, newAllocError(l, errors.Wrap(err, "mmap"))
	}
	return region, nil
}

// Grow implements Allocator by mapping a new region and copying.
func (m *MmapAllocator) Grow(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	return m.remap(block, oldLayout, newLayout, oldLayout.Size)
}

// Shrink implements Allocator. The tail pages are only returned by mapping
// a smaller region, so shrinking copies too.
func (m *MmapAllocator) Shrink(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	if roundUp(newLayout.Size, m.pageSize) == roundUp(oldLayout.Size, m.pageSize) && newLayout.Size > 0 {
		// Same number of pages; keep the mapping so Deallocate still unmaps all of it.
		return block[:newLayout.Size:oldLayout.Size], nil
	}
	return m.remap(block, oldLayout, newLayout, newLayout.Size)
}

// Deallocate implements Allocator.
func (m *MmapAllocator) Deallocate(block []byte, l Layout) {
	if cap(block) == 0 {
		return
	}
	region := mmap.MMap(block[:cap(block)])
	if err := region.Unmap(); err != nil {
		panic(errors.Wrap(err, "arena: munmap"))
	}
}

func (m *MmapAllocator) remap(block []byte, oldLayout, newLayout Layout, keep uintptr) ([]byte, error) {
	buf, err := m.Allocate(newLayout)
	if err != nil {
		return nil, err
	}
	copy(buf, block[:keep])
	m.Deallocate(block, oldLayout)
	return buf, nil
}
