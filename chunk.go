package arena

import (
	"encoding/binary"
	"math"
	"unsafe"
)

const (
	// ChunkAlign is the minimum alignment of every chunk and of every chunk size.
	ChunkAlign = 16

	// footerSize bytes at the high end of each chunk are reserved for the
	// footer. The record itself lives in a chunkFooter so the collector keeps
	// seeing its pointers; the reserved bytes hold a canary and keep a
	// zero-size allocation at the data end inside the block.
	footerSize = 32

	// mallocOverhead approximates the bookkeeping a general purpose allocator
	// adds to each block.
	mallocOverhead = 16

	// overhead is subtracted from power-of-two and page-sized blocks so the
	// whole allocation lands on the intended size.
	overhead = footerSize + mallocOverhead

	// TypicalPageSize is the page size used to round large initial chunks.
	TypicalPageSize = 0x1000

	// FirstChunkDefaultCapacity is the usable capacity of the first chunk of
	// an arena created without an explicit capacity.
	FirstChunkDefaultCapacity = 512 - overhead

	// MaxInitialCapacity is the largest capacity WithCapacity accepts.
	MaxInitialCapacity = math.MaxInt>>1 - TypicalPageSize
)

const footerCanary = 0x6172656e61666f6f // "arenafoo"

// chunkFooter describes one chunk. Offsets are relative to base, which is the
// address of block[0]. Allocation moves cursor downward from end toward
// start, so start <= cursor <= end always holds.
type chunkFooter struct {
	block    []byte
	base     unsafe.Pointer
	start    int
	cursor   int
	end      int
	previous *chunkFooter
	layout   Layout
	// owned is false for a chunk built over caller memory.
	owned bool
}

var (
	emptyChunkData [2 * ChunkAlign]byte

	// emptyChunk is the shared zero-capacity sentinel every fresh arena points
	// at. It is never written to. Its base is aligned to ChunkAlign so
	// zero-size requests up to that alignment succeed on a fresh arena.
	emptyChunk = &chunkFooter{base: alignedBase(emptyChunkData[:], ChunkAlign)}
)

// alignedBase returns the first address in buf aligned to align. buf must be
// at least align bytes long.
func alignedBase(buf []byte, align uintptr) unsafe.Pointer {
	p := unsafe.Pointer(unsafe.SliceData(buf))
	return unsafe.Add(p, roundUp(uintptr(p), align)-uintptr(p))
}

func newChunkFooter(block []byte, l Layout, previous *chunkFooter, owned bool) *chunkFooter {
	end := len(block) - footerSize
	f := &chunkFooter{
		block:    block,
		base:     unsafe.Pointer(unsafe.SliceData(block)),
		start:    0,
		cursor:   end,
		end:      end,
		previous: previous,
		layout:   l,
		owned:    owned,
	}
	binary.LittleEndian.PutUint64(block[end:], footerCanary)
	return f
}

func (f *chunkFooter) isEmpty() bool { return f == emptyChunk }

// capacity is the usable size of the data region.
func (f *chunkFooter) capacity() int { return f.end - f.start }

// usedBytes is the distance bumped so far, padding included.
func (f *chunkFooter) usedBytes() int { return f.end - f.cursor }

func (f *chunkFooter) freeBytes() int { return f.cursor - f.start }

func (f *chunkFooter) ptrAt(off int) unsafe.Pointer { return unsafe.Add(f.base, off) }

func (f *chunkFooter) addrAt(off int) uintptr { return uintptr(f.base) + uintptr(off) }

func (f *chunkFooter) rewind() { f.cursor = f.end }

func (f *chunkFooter) contains(p unsafe.Pointer) bool {
	if f.isEmpty() {
		return false
	}
	addr := uintptr(p)
	return addr >= f.addrAt(f.start) && addr <= f.addrAt(f.end)
}

func (f *chunkFooter) checkCanary() bool {
	return binary.LittleEndian.Uint64(f.block[f.end:]) == footerCanary
}

// chunks calls fn for every chunk reachable from f, newest first. The
// sentinel is excluded.
func (f *chunkFooter) chunks(fn func(*chunkFooter) bool) {
	for c := f; !c.isEmpty(); c = c.previous {
		if !fn(c) {
			return
		}
	}
}

// freeChain returns every owned chunk reachable from f to backing. It walks
// iteratively so arbitrarily long chains cannot exhaust the stack. The
// original block and layout are used, so a start moved by AllocBytesStart
// does not matter here.
func freeChain(f *chunkFooter, backing Allocator) {
	for c := f; !c.isEmpty(); {
		next := c.previous
		if debugAssertions && !c.checkCanary() {
			panic("arena: chunk footer overwritten")
		}
		if c.owned {
			backing.Deallocate(c.block, c.layout)
		}
		c.block, c.base, c.previous = nil, nil, nil
		c = next
	}
}
