// Package vec provides Vec, a contiguous growable buffer whose memory comes
// from an arena.Allocator, normally the arena itself.
//
// Length and capacity are stored as uint32. A toolchain builds one or more
// lists per syntax node, so the smaller header matters more than the
// four-billion element ceiling this imposes.
package vec

import (
	"fmt"
	"iter"
	"math"
	"unsafe"

	"github.com/jstoolkit/arena"
)

// Vec is a growable buffer of T backed by A.
//
// A Vec draws on its allocator for every grow but exclusively owns the
// region it currently holds. With the arena as allocator old regions are
// simply abandoned; other allocators get them back through Grow, Shrink and
// Deallocate.
//
// Element storage is not scanned by the garbage collector when it comes
// from the arena or the heap allocator; see arena.Alloc for what T may hold.
type Vec[T any, A arena.Allocator] struct {
	ptr   unsafe.Pointer
	len   uint32
	cap   uint32
	alloc A
}

// maxCapacity is the widest capacity a uint32 field can report.
const maxCapacity = min(math.MaxUint32, math.MaxInt)

var zstBase struct{}

// New returns an empty Vec that allocates from alloc on first growth.
func New[T any, A arena.Allocator](alloc A) Vec[T, A] {
	v := Vec[T, A]{alloc: alloc}
	if isZST[T]() {
		v.ptr = unsafe.Pointer(&zstBase)
	}
	return v
}

// WithCapacity returns an empty Vec with room for exactly capacity elements.
func WithCapacity[T any, A arena.Allocator](capacity int, alloc A) Vec[T, A] {
	v := New[T](alloc)
	v.ReserveExact(capacity)
	return v
}

// FromSlice returns a Vec holding a copy of s with no spare capacity.
func FromSlice[T any, A arena.Allocator](alloc A, s []T) Vec[T, A] {
	v := WithCapacity[T](len(s), alloc)
	v.ExtendFromSlice(s)
	return v
}

// Len returns the number of elements.
func (v *Vec[T, A]) Len() int { return int(v.len) }

// IsEmpty reports whether the Vec holds no elements.
func (v *Vec[T, A]) IsEmpty() bool { return v.len == 0 }

// Cap returns the number of elements the current region can hold. Vecs of
// zero-size elements never allocate and report the widest capacity.
func (v *Vec[T, A]) Cap() int {
	if isZST[T]() {
		return maxCapacity
	}
	return int(v.cap)
}

// Allocator returns the allocator the Vec grows through.
func (v *Vec[T, A]) Allocator() A { return v.alloc }

// Slice returns the elements as a slice sharing the Vec's storage. It is
// invalidated by any operation that grows or shrinks the Vec.
func (v *Vec[T, A]) Slice() []T {
	if v.len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(v.ptr), v.len)
}

// Get returns the element at index i.
func (v *Vec[T, A]) Get(i int) T {
	return *v.At(i)
}

// Set replaces the element at index i.
func (v *Vec[T, A]) Set(i int, x T) {
	*v.At(i) = x
}

// At returns a pointer to the element at index i.
func (v *Vec[T, A]) At(i int) *T {
	if uint(i) >= uint(v.len) {
		panic(fmt.Sprintf("vec: index out of range [%d] with length %d", i, v.len))
	}
	return v.slot(uint32(i))
}

// Last returns the final element, or false when the Vec is empty.
func (v *Vec[T, A]) Last() (T, bool) {
	if v.len == 0 {
		var zero T
		return zero, false
	}
	return *v.slot(v.len - 1), true
}

// All iterates over index, element pairs.
func (v *Vec[T, A]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := uint32(0); i < v.len; i++ {
			if !yield(int(i), *v.slot(i)) {
				return
			}
		}
	}
}

func (v *Vec[T, A]) slot(i uint32) *T {
	var zero T
	return (*T)(unsafe.Add(v.ptr, uintptr(i)*unsafe.Sizeof(zero)))
}

func isZST[T any]() bool {
	var zero T
	return unsafe.Sizeof(zero) == 0
}
