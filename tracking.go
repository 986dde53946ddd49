package arena

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// TrackingAllocator wraps another Allocator, counting the bytes and blocks it
// currently has outstanding and optionally enforcing a byte limit on them.
// It is safe for concurrent use when the wrapped Allocator is.
type TrackingAllocator struct {
	inner Allocator
	limit uint64

	liveBytes   atomic.Uint64
	liveBlocks  atomic.Int64
	peakBytes   atomic.Uint64
	allocations atomic.Uint64
	failures    atomic.Uint64
}

// NewTrackingAllocator wraps inner. A limit of 0 disables the byte limit.
func NewTrackingAllocator(inner Allocator, limit uint64) *TrackingAllocator {
	if inner == nil {
		inner = DefaultAllocator
	}
	return &TrackingAllocator{inner: inner, limit: limit}
}

// Allocate implements Allocator.
func (t *TrackingAllocator) Allocate(l Layout) ([]byte, error) {
	if !t.reserve(uint64(l.Size)) {
		t.failures.Inc()
		return nil, newAllocError(l, errors.Errorf("tracking limit of %d bytes reached", t.limit))
	}
	block, err := t.inner.Allocate(l)
	if err != nil {
		t.release(uint64(l.Size))
		t.failures.Inc()
		return nil, err
	}
	t.liveBlocks.Inc()
	t.allocations.Inc()
	return block, nil
}

// Grow implements Allocator.
func (t *TrackingAllocator) Grow(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	delta := uint64(newLayout.Size - oldLayout.Size)
	if !t.reserve(delta) {
		t.failures.Inc()
		return nil, newAllocError(newLayout, errors.Errorf("tracking limit of %d bytes reached", t.limit))
	}
	grown, err := t.inner.Grow(block, oldLayout, newLayout)
	if err != nil {
		t.release(delta)
		t.failures.Inc()
		return nil, err
	}
	t.allocations.Inc()
	return grown, nil
}

// Shrink implements Allocator.
func (t *TrackingAllocator) Shrink(block []byte, oldLayout, newLayout Layout) ([]byte, error) {
	shrunk, err := t.inner.Shrink(block, oldLayout, newLayout)
	if err != nil {
		t.failures.Inc()
		return nil, err
	}
	t.release(uint64(oldLayout.Size - newLayout.Size))
	return shrunk, nil
}

// Deallocate implements Allocator.
func (t *TrackingAllocator) Deallocate(block []byte, l Layout) {
	t.inner.Deallocate(block, l)
	t.release(uint64(l.Size))
	t.liveBlocks.Dec()
}

// LiveBytes returns the bytes currently handed out and not yet returned.
func (t *TrackingAllocator) LiveBytes() uint64 { return t.liveBytes.Load() }

// LiveBlocks returns the number of blocks currently handed out.
func (t *TrackingAllocator) LiveBlocks() int64 { return t.liveBlocks.Load() }

// PeakBytes returns the highest LiveBytes value observed.
func (t *TrackingAllocator) PeakBytes() uint64 { return t.peakBytes.Load() }

// Allocations returns the number of successful Allocate and Grow calls.
func (t *TrackingAllocator) Allocations() uint64 { return t.allocations.Load() }

// Failures returns the number of refused requests.
func (t *TrackingAllocator) Failures() uint64 { return t.failures.Load() }

// Limit returns the configured byte limit, 0 if unlimited.
func (t *TrackingAllocator) Limit() uint64 { return t.limit }

func (t *TrackingAllocator) reserve(n uint64) bool {
	for {
		cur := t.liveBytes.Load()
		next := cur + n
		if next < cur || (t.limit > 0 && next > t.limit) {
			return false
		}
		if t.liveBytes.CompareAndSwap(cur, next) {
			t.updatePeak(next)
			return true
		}
	}
}

func (t *TrackingAllocator) release(n uint64) {
	t.liveBytes.Sub(n)
}

func (t *TrackingAllocator) updatePeak(v uint64) {
	for {
		peak := t.peakBytes.Load()
		if v <= peak || t.peakBytes.CompareAndSwap(peak, v) {
			return
		}
	}
}
