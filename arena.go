// Package arena implements a chunked bump allocator (memory arena).
// Typical usage: create one arena per parsed file, allocate every node, list
// and string of that file from it, then Reset() once the file is done.
package arena

import (
	"math"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Arena is a chunked bump allocator. Memory is carved downward from the top
// of the current chunk; when it runs out a larger chunk is obtained from the
// backing Allocator and linked in front of the old one.
//
// Arena is not safe for concurrent use. Allocation mutates the current
// chunk's cursor without synchronization; use SafeArena to share one arena
// between goroutines. An Arena may be handed to another goroutine once no
// references into its memory remain.
type Arena struct {
	current  *chunkFooter
	backing  Allocator
	logger   log.Logger
	minAlign uintptr
}

// Option configures an Arena.
type Option func(*Arena)

// WithBacking sets the Allocator chunks are obtained from.
func WithBacking(backing Allocator) Option {
	return func(a *Arena) {
		if backing != nil {
			a.backing = backing
		}
	}
}

// WithLogger sets the logger used on the chunk acquisition path.
func WithLogger(logger log.Logger) Option {
	return func(a *Arena) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMinAlign sets the alignment every allocation is rounded to. It must be
// a power of two no larger than ChunkAlign. The default is 1.
func WithMinAlign(align uintptr) Option {
	return func(a *Arena) {
		if !isPowerOfTwo(align) || align > ChunkAlign {
			panic("arena: minimum alignment must be a power of two <= ChunkAlign")
		}
		a.minAlign = align
	}
}

// New creates an empty Arena. No memory is obtained until the first
// allocation.
func New(opts ...Option) *Arena {
	a := &Arena{
		current:  emptyChunk,
		backing:  DefaultAllocator,
		logger:   log.NewNopLogger(),
		minAlign: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithCapacity creates an Arena whose first chunk can hold at least capacity
// bytes. The capacity is rounded so the whole chunk allocation lands on a
// power of two below TypicalPageSize and on a page multiple above it.
// Panics if capacity exceeds MaxInitialCapacity.
func WithCapacity(capacity int, opts ...Option) *Arena {
	a := New(opts...)
	if capacity == 0 {
		return a
	}
	if capacity < 0 || capacity > MaxInitialCapacity {
		panic("arena: capacity cannot exceed MaxInitialCapacity")
	}

	capacity = initialChunkCapacity(capacity)
	f, err := a.newChunk(capacity, ChunkAlign, emptyChunk)
	if err != nil {
		AllocFailure(Layout{Size: uintptr(capacity + footerSize), Align: ChunkAlign})
	}
	a.current = f
	return a
}

// InitialChunkSize returns the number of bytes WithCapacity obtains from the
// backing allocator for capacity, or 0 when capacity is 0.
func InitialChunkSize(capacity int) int {
	if capacity <= 0 || capacity > MaxInitialCapacity {
		return 0
	}
	return initialChunkCapacity(capacity) + footerSize
}

func initialChunkCapacity(capacity int) int {
	capacity = roundUpInt(capacity, ChunkAlign)
	if capacity < TypicalPageSize {
		return nextPowerOfTwo(capacity+overhead) - overhead
	}
	return roundUpInt(capacity+overhead, TypicalPageSize) - overhead
}

// FromRaw creates an Arena whose single chunk is mem. The arena never
// returns mem to an allocator; callers keep ownership and must keep mem
// reachable while the arena is in use.
//
// Contract, checked only in arenadebug builds: mem starts on a ChunkAlign
// boundary, len(mem) is a multiple of ChunkAlign and at least the footer
// size, and align (the alignment mem was obtained with) is at least
// ChunkAlign. Violations are the caller's responsibility.
func FromRaw(mem []byte, align uintptr, opts ...Option) *Arena {
	if debugAssertions {
		debugAssert(isMultipleOf(uintptr(unsafe.Pointer(unsafe.SliceData(mem))), ChunkAlign), "raw memory not aligned to %d", ChunkAlign)
		debugAssert(len(mem)%ChunkAlign == 0, "raw size %d not a multiple of %d", len(mem), ChunkAlign)
		debugAssert(len(mem) >= footerSize, "raw size %d smaller than footer", len(mem))
		debugAssert(align >= ChunkAlign, "raw alignment %d below %d", align, ChunkAlign)
	}
	a := New(opts...)
	a.current = newChunkFooter(mem, Layout{Size: uintptr(len(mem)), Align: align}, emptyChunk, false)
	return a
}

// AllocLayout returns a pointer to l.Size uninitialized bytes aligned to
// l.Align. The memory stays valid until the arena is reset or released.
// Out of memory is fatal.
func (a *Arena) AllocLayout(l Layout) unsafe.Pointer {
	debugAssert(isPowerOfTwo(l.Align), "alignment %d is not a power of two", l.Align)
	if p, ok := a.allocFast(l); ok {
		return p
	}
	return a.allocSlow(l)
}

// AllocBytes returns n uninitialized bytes from the arena.
// Returns nil if n <= 0.
func (a *Arena) AllocBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	p := a.AllocLayout(Layout{Size: uintptr(n), Align: 1})
	return unsafe.Slice((*byte)(p), n)
}

// allocFast carves l out of the current chunk, or reports false when it
// does not fit.
func (a *Arena) allocFast(l Layout) (unsafe.Pointer, bool) {
	c := a.current
	if debugAssertions {
		debugAssert(c.start <= c.cursor && c.cursor <= c.end, "cursor %d outside [%d, %d]", c.cursor, c.start, c.end)
		debugAssert(c.isEmpty() || isMultipleOf(c.addrAt(c.cursor), a.minAlign), "cursor not aligned to %d", a.minAlign)
	}

	free := uintptr(c.cursor - c.start)
	if l.Size > free {
		return nil, false
	}

	var off int
	switch {
	case l.Align < a.minAlign:
		size := roundUp(l.Size, a.minAlign)
		if size > free {
			return nil, false
		}
		off = c.cursor - int(size)
	case l.Align == a.minAlign:
		// Sizes are not required to be multiples of their alignment.
		size := roundUp(l.Size, l.Align)
		if size > free {
			return nil, false
		}
		off = c.cursor - int(size)
	default:
		size := roundUp(l.Size, l.Align)
		// Padding is compared before it is subtracted; an extreme alignment
		// would otherwise move the candidate out of the address range.
		pad := c.addrAt(c.cursor) & (l.Align - 1)
		if pad > free || size > free-pad {
			return nil, false
		}
		off = c.cursor - int(pad) - int(size)
	}

	if debugAssertions {
		debugAssert(l.Size == 0 || isMultipleOf(c.addrAt(off), l.Align), "result not aligned to %d", l.Align)
		debugAssert(off >= c.start && off <= c.cursor, "result %d outside [%d, %d]", off, c.start, c.cursor)
	}
	if off != c.cursor {
		// Zero-size requests leave the shared sentinel untouched.
		c.cursor = off
	}
	return c.ptrAt(off), true
}

// allocSlow obtains a new chunk big enough for l, makes it current and
// retries the fast path.
func (a *Arena) allocSlow(l Layout) unsafe.Pointer {
	if _, err := NewLayout(l.Size, l.Align); err != nil {
		if errors.Is(err, ErrCapacityOverflow) {
			CapacityOverflow()
		}
		panic(err)
	}

	old := a.current
	align := max(l.Align, ChunkAlign)

	var minCapacity int
	if l.Size <= FirstChunkDefaultCapacity {
		minCapacity = FirstChunkDefaultCapacity
	} else {
		size := roundUp(l.Size, ChunkAlign) + footerSize
		if _, err := NewLayout(size, align); err != nil {
			CapacityOverflow()
		}
		minCapacity = int(size) - footerSize
	}
	if align > ChunkAlign {
		// The data end must sit on the requested alignment for the retry to fit.
		if uintptr(minCapacity) > uintptr(math.MaxInt)-align-footerSize {
			CapacityOverflow()
		}
		minCapacity = int(roundUp(uintptr(minCapacity), align))
	}

	// Roughly double the chunk being replaced, kept representable once
	// rounded to the chunk alignment.
	double := old.capacity()
	if double > math.MaxInt/4 {
		double = math.MaxInt / 2
	} else {
		double *= 2
	}
	doubleSize := roundUp(uintptr(double), ChunkAlign) + footerSize
	if roundUp(doubleSize, align) > math.MaxInt {
		doubleSize -= align
	}
	target := int(doubleSize) - footerSize
	if align > ChunkAlign {
		target &^= int(align) - 1
	}

	tryCapacity := max(minCapacity, target)
	triedMinimum := false
	var f *chunkFooter
	for {
		var err error
		f, err = a.newChunk(tryCapacity, align, old)
		if err == nil {
			break
		}
		level.Warn(a.logger).Log("msg", "arena chunk allocation refused, retrying smaller", "capacity", tryCapacity, "align", align, "err", err)

		tryCapacity = (tryCapacity / 2) &^ (int(align) - 1)
		if tryCapacity < minCapacity {
			if triedMinimum {
				AllocFailure(Layout{Size: uintptr(minCapacity + footerSize), Align: align})
			}
			tryCapacity = minCapacity
			triedMinimum = true
		}
	}

	if debugAssertions {
		debugAssert(isMultipleOf(uintptr(f.base), align), "chunk not aligned to %d", align)
		debugAssert(uintptr(f.capacity()) >= l.Size, "chunk capacity %d below request %d", f.capacity(), l.Size)
	}
	level.Debug(a.logger).Log("msg", "arena acquired chunk", "capacity", f.capacity(), "align", align, "previous_capacity", old.capacity())

	a.current = f
	p, ok := a.allocFast(l)
	if !ok {
		panic("arena: fresh chunk cannot satisfy allocation")
	}
	return p
}

func (a *Arena) newChunk(capacity int, align uintptr, previous *chunkFooter) (*chunkFooter, error) {
	l := Layout{Size: uintptr(capacity + footerSize), Align: align}
	block, err := a.backing.Allocate(l)
	if err != nil {
		return nil, err
	}
	if uintptr(len(block)) != l.Size {
		return nil, newAllocError(l, errors.Errorf("backing returned %d bytes", len(block)))
	}
	return newChunkFooter(block, l, previous, true), nil
}

// AllocBytesStart claims n bytes, rounded up to ChunkAlign, at the start of
// the current chunk's data region and moves the start past them. It lets a
// header be written in front of a payload whose size is only known after the
// payload has been bump-allocated.
//
// The current chunk must have strictly more than the rounded size free;
// the call panics otherwise. Every allocation taken afterwards may come
// from a new chunk, so callers must check that the chunk has not changed if
// it matters. Chunks are freed through the block they were obtained as, so a
// start that is never restored does not corrupt Reset or Release; it only
// stays claimed until the chunk is freed.
func (a *Arena) AllocBytesStart(n int) unsafe.Pointer {
	if n < 0 {
		panic("arena: negative AllocBytesStart size")
	}
	allocBytes := roundUpInt(n, ChunkAlign)
	c := a.current
	if c.freeBytes() <= allocBytes {
		panic("arena: not enough free capacity for AllocBytesStart")
	}
	p := c.ptrAt(c.start)
	c.start += allocBytes
	return p
}

// StartPtr returns the start of the current chunk's data region.
func (a *Arena) StartPtr() unsafe.Pointer {
	return a.current.ptrAt(a.current.start)
}

// SetStartPtr moves the start of the current chunk's data region to p,
// typically to undo AllocBytesStart. p must lie within the current chunk, at
// or below the cursor, on a ChunkAlign boundary.
func (a *Arena) SetStartPtr(p unsafe.Pointer) {
	c := a.current
	if c.isEmpty() {
		panic("arena: SetStartPtr on an arena without chunks")
	}
	off := int(uintptr(p) - uintptr(c.base))
	if debugAssertions {
		debugAssert(isMultipleOf(uintptr(p), ChunkAlign), "start %p not aligned to %d", p, ChunkAlign)
	}
	if off < 0 || off > c.cursor {
		panic("arena: SetStartPtr outside the current chunk")
	}
	c.start = off
}

// DataEndPtr returns the end of the current chunk's data region, where the
// footer begins. Allocation proceeds downward from here.
func (a *Arena) DataEndPtr() unsafe.Pointer {
	return a.current.ptrAt(a.current.end)
}

// EndAddr returns the address one past the end of the current chunk's
// block. It is an address, not a Go pointer, since nothing lives there.
func (a *Arena) EndAddr() uintptr {
	c := a.current
	if c.isEmpty() {
		return uintptr(c.base)
	}
	return c.addrAt(len(c.block))
}

// Contains reports whether p points into any chunk of the arena.
func (a *Arena) Contains(p unsafe.Pointer) bool {
	found := false
	a.current.chunks(func(c *chunkFooter) bool {
		found = c.contains(p)
		return !found
	})
	return found
}

// Reset rewinds the arena for reuse. The most recent chunk, which is also the
// largest, is kept and emptied; every older chunk is returned to the backing
// allocator. Every pointer previously returned by the arena is invalid
// afterwards.
func (a *Arena) Reset() {
	last := a.current
	if last.isEmpty() {
		return
	}
	last.rewind()

	previous := last.previous
	if previous.isEmpty() {
		return
	}
	last.previous = emptyChunk
	freeChain(previous, a.backing)
}

// Release returns every chunk to the backing allocator. The arena is empty
// afterwards and may be used again.
func (a *Arena) Release() {
	freeChain(a.current, a.backing)
	a.current = emptyChunk
}

// Backing returns the Allocator chunks are obtained from.
func (a *Arena) Backing() Allocator {
	return a.backing
}
