// Package arena implements the bump allocator every syntax tree node, node
// list and copied string of the JavaScript toolchain is allocated from.
//
// # Overview
//
// An Arena hands out memory by moving a cursor downward through a chunk
// obtained from a backing Allocator. Objects are never freed one by one:
// they live until the arena is Reset or Released. When the current chunk is
// exhausted a new chunk, roughly twice as large, is linked in front of it.
//
// # Basic Usage
//
//	a := arena.New()  // no memory until the first allocation
//	defer a.Release() // return every chunk
//
//	// Raw bytes and layouts
//	buf := a.AllocBytes(1024)
//	p := a.AllocLayout(arena.Layout{Size: 24, Align: 8})
//
//	// Typed values
//	node := arena.Alloc(a, Node{Kind: KindIdentifier})
//	name := arena.AllocStr(a, "console")
//	ids := arena.AllocSliceCopy(a, []uint32{1, 2, 3})
//
//	// Reuse the largest chunk for the next file
//	a.Reset()
//
// Growable lists live in package vec and are parameterized over any
// Allocator, normally the arena itself:
//
//	list := vec.New[Statement](a)
//	list.Push(stmt)
//
// # Backing Allocators
//
// Chunks come from an Allocator: HeapAllocator (the Go heap, the default),
// MmapAllocator (anonymous mappings returned to the OS on reset) or any
// wrapper such as TrackingAllocator, which counts live bytes and can enforce
// a limit.
//
// # Thread Safety
//
// The basic Arena type is not thread-safe. For concurrent access, use SafeArena:
//
//	s := arena.NewSafeArena()
//	defer s.Release()
//	name := arena.SafeAllocStr(s, "window")
//
// Package pool hands out one arena per goroutine instead.
//
// # Memory Layout
//
// Each chunk reserves a small footer region at its high end. Allocation
// starts just below the footer and proceeds toward the start of the chunk,
// so the footer address doubles as the reference point for free space.
// Reset keeps only the newest chunk, which is also the largest.
//
// # Important Notes
//
//   - Allocated memory is only valid until Reset or Release
//   - No individual deallocation
//   - Memory is not scanned by the garbage collector: stored values must not
//     hold the only reference to Go heap objects
//   - Out of memory and capacity overflow are fatal and panic
//   - Build with -tags arenadebug to enable internal assertions
//
// # Metrics and Monitoring
//
//	stats := a.Stats()
//	fmt.Println(stats) // used=1.0 KiB capacity=3.0 KiB free=2.0 KiB chunks=2 utilization=34.9%
//
// Collector exports the same figures to Prometheus.
package arena
