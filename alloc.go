package arena

import (
	"reflect"
	"runtime"
	"unsafe"
)

// Alloc moves v into the arena and returns a pointer to the copy.
// The returned pointer is valid until the arena is reset or released.
//
// The arena never finalizes values and stores them in memory the garbage
// collector does not scan, so T must not be, or contain, a map, channel,
// function or interface. Pointers inside T may only refer to memory that is
// kept alive elsewhere, normally the same arena. arenadebug builds check the
// kind restriction.
func Alloc[T any](a *Arena, v T) *T {
	p := allocTyped[T](a)
	*p = v
	return p
}

// AllocWith allocates space for a T and fills it with the result of f.
// The compiler may construct the value straight into the arena slot.
func AllocWith[T any](a *Arena, f func() T) *T {
	p := allocTyped[T](a)
	*p = f()
	return p
}

// AllocZeroed returns a pointer to a zero T stored inside the arena.
func AllocZeroed[T any](a *Arena) *T {
	p := allocTyped[T](a)
	var zero T
	*p = zero
	return p
}

// AllocUninitialized returns a *T located in the arena without zeroing memory.
// This is faster than AllocZeroed but the memory contents are undefined.
func AllocUninitialized[T any](a *Arena) *T {
	return allocTyped[T](a)
}

// AllocSlice allocates a zeroed slice of n elements of type T inside the arena.
// Returns nil if n <= 0.
func AllocSlice[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}
	s := allocSliceUninit[T](a, n)
	clear(s)
	return s
}

// AllocSliceCopy copies src into the arena and returns the copy.
// An empty src returns an empty slice without touching the arena.
func AllocSliceCopy[T any](a *Arena, src []T) []T {
	if len(src) == 0 {
		return []T{}
	}
	dst := allocSliceUninit[T](a, len(src))
	copy(dst, src)
	return dst
}

// AllocBytesCopy copies b into the arena.
func AllocBytesCopy(a *Arena, b []byte) []byte {
	return AllocSliceCopy(a, b)
}

// AllocStr copies s into the arena and returns a string backed by the copy.
func AllocStr(a *Arena, s string) string {
	if len(s) == 0 {
		return ""
	}
	p := a.AllocLayout(Layout{Size: uintptr(len(s)), Align: 1})
	dst := unsafe.Slice((*byte)(p), len(s))
	copy(dst, s)
	return unsafe.String(unsafe.SliceData(dst), len(dst))
}

// PtrAndKeepAlive returns t and calls runtime.KeepAlive on the arena.
// This prevents the arena from being garbage collected while a pointer
// derived by unsafe arithmetic is still in use.
func PtrAndKeepAlive[T any](a *Arena, t *T) *T {
	runtime.KeepAlive(a)
	return t
}

func allocTyped[T any](a *Arena) *T {
	l := LayoutOf[T]()
	if debugAssertions {
		assertStorable[T]()
	}
	return (*T)(a.AllocLayout(l))
}

func allocSliceUninit[T any](a *Arena, n int) []T {
	if debugAssertions {
		assertStorable[T]()
	}
	l, err := ArrayLayout[T](n)
	if err != nil {
		CapacityOverflow()
	}
	return unsafe.Slice((*T)(a.AllocLayout(l)), n)
}

func assertStorable[T any]() {
	t := reflect.TypeFor[T]()
	debugAssert(!holdsManagedRefs(t), "type %s cannot be stored in an arena", t)
}
