package arena

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/pkg/errors"
)

// Layout describes the size and alignment of a memory request.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// NewLayout validates and returns a Layout. Align must be a non-zero power of
// two and Size rounded up to Align must not exceed math.MaxInt.
func NewLayout(size, align uintptr) (Layout, error) {
	if !isPowerOfTwo(align) {
		return Layout{}, errors.Wrapf(ErrInvalidLayout, "alignment %d is not a power of two", align)
	}
	if size > uintptr(math.MaxInt)-(align-1) {
		return Layout{}, errors.Wrapf(ErrCapacityOverflow, "size %d with alignment %d", size, align)
	}
	return Layout{Size: size, Align: align}, nil
}

// LayoutOf returns the layout of a single T.
func LayoutOf[T any]() Layout {
	var zero T
	return Layout{Size: unsafe.Sizeof(zero), Align: unsafe.Alignof(zero)}
}

// ArrayLayout returns the layout of n contiguous values of T.
func ArrayLayout[T any](n int) (Layout, error) {
	if n < 0 {
		return Layout{}, errors.Wrapf(ErrCapacityOverflow, "negative element count %d", n)
	}
	elem := LayoutOf[T]()
	hi, lo := bits.Mul64(uint64(elem.Size), uint64(n))
	if hi != 0 || lo > math.MaxInt {
		return Layout{}, errors.Wrapf(ErrCapacityOverflow, "%d elements of %d bytes", n, elem.Size)
	}
	return NewLayout(uintptr(lo), elem.Align)
}

// PadToAlign returns l with its size rounded up to a multiple of its alignment.
func (l Layout) PadToAlign() Layout {
	return Layout{Size: roundUp(l.Size, l.Align), Align: l.Align}
}

func isPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// roundUp rounds n up to a multiple of align, which must be a power of two.
func roundUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func roundUpInt(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func isMultipleOf(n, divisor uintptr) bool {
	return n&(divisor-1) == 0
}
