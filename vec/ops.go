package vec

import (
	"fmt"
	"unsafe"
)

// Push appends x, growing the Vec if it is full.
func (v *Vec[T, A]) Push(x T) {
	if int(v.len) == v.Cap() {
		v.Reserve(1)
	}
	*v.slot(v.len) = x
	v.len++
}

// Pop removes and returns the last element, or false when the Vec is empty.
func (v *Vec[T, A]) Pop() (T, bool) {
	var zero T
	if v.len == 0 {
		return zero, false
	}
	v.len--
	p := v.slot(v.len)
	x := *p
	*p = zero
	return x, true
}

// Append pushes every element of xs.
func (v *Vec[T, A]) Append(xs ...T) {
	v.ExtendFromSlice(xs)
}

// ExtendFromSlice appends a copy of src, reserving once for all of it.
func (v *Vec[T, A]) ExtendFromSlice(src []T) {
	if len(src) == 0 {
		return
	}
	v.Reserve(len(src))
	copy(v.spare(len(src)), src)
	v.len += uint32(len(src))
}

// Insert places x at index i, shifting later elements up.
func (v *Vec[T, A]) Insert(i int, x T) {
	if uint(i) > uint(v.len) {
		panic(fmt.Sprintf("vec: insertion index (is %d) should be <= len (is %d)", i, v.len))
	}
	if int(v.len) == v.Cap() {
		v.Reserve(1)
	}
	s := unsafe.Slice((*T)(v.ptr), v.len+1)
	copy(s[i+1:], s[i:v.len])
	s[i] = x
	v.len++
}

// Remove deletes and returns the element at index i, shifting later
// elements down.
func (v *Vec[T, A]) Remove(i int) T {
	if uint(i) >= uint(v.len) {
		panic(fmt.Sprintf("vec: removal index (is %d) should be < len (is %d)", i, v.len))
	}
	s := v.Slice()
	x := s[i]
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	v.len--
	return x
}

// SwapRemove deletes and returns the element at index i, moving the last
// element into its place. It does not preserve order but is O(1).
func (v *Vec[T, A]) SwapRemove(i int) T {
	if uint(i) >= uint(v.len) {
		panic(fmt.Sprintf("vec: swap_remove index (is %d) should be < len (is %d)", i, v.len))
	}
	s := v.Slice()
	x := s[i]
	last := len(s) - 1
	s[i] = s[last]
	var zero T
	s[last] = zero
	v.len--
	return x
}

// Truncate shortens the Vec to n elements. It has no effect if n >= Len().
// Capacity is unchanged.
func (v *Vec[T, A]) Truncate(n int) {
	if n < 0 {
		panic("vec: negative length")
	}
	if n >= int(v.len) {
		return
	}
	clear(v.Slice()[n:])
	v.len = uint32(n)
}

// Clear removes every element, keeping the capacity.
func (v *Vec[T, A]) Clear() {
	v.Truncate(0)
}

// Resize changes the length to n, filling new slots with x.
func (v *Vec[T, A]) Resize(n int, x T) {
	if n < 0 {
		panic("vec: negative length")
	}
	if n <= int(v.len) {
		v.Truncate(n)
		return
	}
	extra := n - int(v.len)
	v.Reserve(extra)
	s := v.spare(extra)
	for i := range s {
		s[i] = x
	}
	v.len = uint32(n)
}

// Retain keeps only the elements for which keep returns true, preserving
// their order.
func (v *Vec[T, A]) Retain(keep func(*T) bool) {
	s := v.Slice()
	n := 0
	for i := range s {
		if keep(&s[i]) {
			if n != i {
				s[n] = s[i]
			}
			n++
		}
	}
	clear(s[n:])
	v.len = uint32(n)
}

// SplitOff moves the elements from index at onward into a new Vec using the
// same allocator.
func (v *Vec[T, A]) SplitOff(at int) Vec[T, A] {
	if uint(at) > uint(v.len) {
		panic(fmt.Sprintf("vec: split index (is %d) should be <= len (is %d)", at, v.len))
	}
	tail := v.Slice()[at:]
	other := WithCapacity[T](len(tail), v.alloc)
	other.ExtendFromSlice(tail)
	v.Truncate(at)
	return other
}

// IntoSlice hands the elements to the caller as a slice and leaves the Vec
// empty without releasing the region; the slice stays valid for as long as
// the allocator keeps the region alive.
func (v *Vec[T, A]) IntoSlice() []T {
	s := v.Slice()
	*v = New[T](v.alloc)
	return s
}

// spare returns the n slots following the current length. Capacity must
// already be reserved.
func (v *Vec[T, A]) spare(n int) []T {
	return unsafe.Slice(v.slot(v.len), n)
}
