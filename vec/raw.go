package vec

import (
	"unsafe"

	"fortio.org/safecast"
	"github.com/pkg/errors"

	"github.com/jstoolkit/arena"
)

// Reserve makes room for at least additional more elements. Growth is
// amortized: capacity becomes max(2*cap, len+additional), so repeated pushes
// double while one large bulk reservation is honored exactly.
// Capacity overflow and allocation failure are fatal.
func (v *Vec[T, A]) Reserve(additional int) {
	if err := v.TryReserve(additional); err != nil {
		handleReserveError(err)
	}
}

// ReserveExact makes room for exactly additional more elements, without
// slack. Prefer Reserve unless no further growth is expected.
func (v *Vec[T, A]) ReserveExact(additional int) {
	if err := v.TryReserveExact(additional); err != nil {
		handleReserveError(err)
	}
}

// TryReserve is Reserve returning an error instead of panicking. The error
// wraps arena.ErrCapacityOverflow or is an *arena.AllocError.
func (v *Vec[T, A]) TryReserve(additional int) error {
	if !v.needsToGrow(additional) {
		return nil
	}
	return v.growAmortized(additional)
}

// TryReserveExact is ReserveExact returning an error instead of panicking.
func (v *Vec[T, A]) TryReserveExact(additional int) error {
	if !v.needsToGrow(additional) {
		return nil
	}
	return v.growExact(additional)
}

// ShrinkToFit shrinks the capacity to the length. A Vec shrunk to zero
// returns its region to the allocator.
func (v *Vec[T, A]) ShrinkToFit() {
	v.shrinkToFit(v.len)
}

// ShrinkTo shrinks the capacity to max(minCapacity, Len()) if that is below
// the current capacity.
func (v *Vec[T, A]) ShrinkTo(minCapacity int) {
	if minCapacity < 0 || minCapacity >= int(v.cap) {
		return
	}
	v.shrinkToFit(max(v.len, uint32(minCapacity)))
}

// Free returns the region to the allocator and leaves the Vec empty.
func (v *Vec[T, A]) Free() {
	v.len = 0
	v.shrinkToFit(0)
}

func (v *Vec[T, A]) needsToGrow(additional int) bool {
	if additional < 0 {
		panic("vec: negative reserve")
	}
	return uint64(additional) > uint64(v.Cap())-uint64(v.len)
}

func (v *Vec[T, A]) growExact(additional int) error {
	required := uint64(v.len) + uint64(additional)
	return v.finishGrow(required)
}

func (v *Vec[T, A]) growAmortized(additional int) error {
	required := uint64(v.len) + uint64(additional)
	// Doubling is capped at the widest capacity so a request that fits is
	// never rejected just because twice the old capacity would not.
	doubled := min(2*uint64(v.cap), maxCapacity)
	return v.finishGrow(max(doubled, required))
}

// finishGrow moves the Vec to a region for newCap elements. Allocate is used
// for the first region and Grow afterwards.
func (v *Vec[T, A]) finishGrow(newCap uint64) error {
	capacity, err := safecast.Conv[uint32](newCap)
	if err != nil {
		return errors.Wrapf(arena.ErrCapacityOverflow, "vec capacity %d", newCap)
	}
	if isZST[T]() {
		return nil
	}
	n, err := safecast.Conv[int](newCap)
	if err != nil {
		return errors.Wrapf(arena.ErrCapacityOverflow, "vec capacity %d", newCap)
	}
	newLayout, err := arena.ArrayLayout[T](n)
	if err != nil {
		return err
	}

	var block []byte
	if v.cap == 0 {
		block, err = v.alloc.Allocate(newLayout)
	} else {
		block, err = v.alloc.Grow(v.bytes(), v.currentLayout(), newLayout)
	}
	if err != nil {
		return asAllocError(newLayout, err)
	}

	v.ptr = unsafe.Pointer(unsafe.SliceData(block))
	v.cap = capacity
	return nil
}

func (v *Vec[T, A]) shrinkToFit(amount uint32) {
	if isZST[T]() {
		return
	}
	if amount > v.cap {
		panic("vec: tried to shrink to a larger capacity")
	}

	if amount == 0 {
		if v.cap != 0 {
			v.alloc.Deallocate(v.bytes(), v.currentLayout())
		}
		v.ptr = nil
		v.cap = 0
		return
	}
	if v.cap == amount {
		return
	}

	newLayout, err := arena.ArrayLayout[T](int(amount))
	if err != nil {
		arena.CapacityOverflow()
	}
	block, err := v.alloc.Shrink(v.bytes(), v.currentLayout(), newLayout)
	if err != nil {
		panic(asAllocError(newLayout, err))
	}
	v.ptr = unsafe.Pointer(unsafe.SliceData(block))
	v.cap = amount
}

// currentLayout is the layout of the region held; only valid when cap > 0.
func (v *Vec[T, A]) currentLayout() arena.Layout {
	elem := arena.LayoutOf[T]()
	return arena.Layout{Size: elem.Size * uintptr(v.cap), Align: elem.Align}
}

func (v *Vec[T, A]) bytes() []byte {
	return unsafe.Slice((*byte)(v.ptr), v.currentLayout().Size)
}

func asAllocError(l arena.Layout, err error) error {
	var allocErr *arena.AllocError
	if errors.As(err, &allocErr) {
		return allocErr
	}
	return &arena.AllocError{Layout: l, Err: err}
}

// handleReserveError is the fatal report for the aborting entry points.
func handleReserveError(err error) {
	if errors.Is(err, arena.ErrCapacityOverflow) {
		arena.CapacityOverflow()
	}
	panic(err)
}
