package arena

import "unsafe"

var _ Allocator = (*Arena)(nil)

// Allocate implements Allocator. It never fails: running out of memory is
// fatal inside the arena.
func (a *Arena) Allocate(l Layout) ([]byte, error) {
	p := a.AllocLayout(l)
	return unsafe.Slice((*byte)(p), l.Size), nil
}

// Grow implements Allocator. When block is the most recent allocation and
// the current chunk has room below it, the cursor moves down and the
// contents follow; otherwise a new region is allocated and block is copied
// into it. The old region is abandoned either way.
func (a *Arena) Grow(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	if p, ok := a.growInPlace(block, oldLayout, newLayout); ok {
		return unsafe.Slice((*byte)(p), newLayout.Size), nil
	}
	p := a.AllocLayout(newLayout)
	dst := unsafe.Slice((*byte)(p), newLayout.Size)
	copy(dst, block[:oldLayout.Size])
	return dst, nil
}

func (a *Arena) growInPlace(block []byte, oldLayout, newLayout Layout) (unsafe.Pointer, bool) {
	c := a.current
	if c.isEmpty() || len(block) == 0 || newLayout.Size < oldLayout.Size {
		return nil, false
	}
	if unsafe.Pointer(unsafe.SliceData(block)) != c.ptrAt(c.cursor) {
		return nil, false
	}

	align := max(newLayout.Align, a.minAlign)
	additional := newLayout.Size - oldLayout.Size
	free := uintptr(c.freeBytes())
	if additional > free {
		return nil, false
	}
	pad := (c.addrAt(c.cursor) - additional) & (align - 1)
	if pad > free-additional {
		return nil, false
	}

	off := c.cursor - int(additional) - int(pad)
	dst := unsafe.Slice((*byte)(c.ptrAt(off)), newLayout.Size)
	// Regions overlap; copy moves like memmove.
	copy(dst, block[:oldLayout.Size])
	c.cursor = off
	return c.ptrAt(off), true
}

// Shrink implements Allocator. The arena does not reclaim the tail.
func (a *Arena) Shrink(block []byte, _, newLayout Layout) ([]byte, error) {
	return block[:newLayout.Size:newLayout.Size], nil
}

// Deallocate implements Allocator as a no-op; arena memory is only
// reclaimed by Reset or Release.
func (a *Arena) Deallocate([]byte, Layout) {}
