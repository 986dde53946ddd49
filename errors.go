package arena

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAllocFailed is reported when a backing allocator cannot satisfy a request.
	ErrAllocFailed = errors.New("memory allocation failed")

	// ErrCapacityOverflow is reported when a size, alignment or element count
	// cannot be represented.
	ErrCapacityOverflow = errors.New("capacity overflow")

	// ErrInvalidLayout is reported for a malformed Layout.
	ErrInvalidLayout = errors.New("invalid layout")
)

// AllocError records the request a backing allocator refused.
type AllocError struct {
	Layout Layout
	Err    error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("memory allocation of %d bytes (align %d) failed: %v", e.Layout.Size, e.Layout.Align, e.Err)
}

func (e *AllocError) Unwrap() error { return e.Err }

// newAllocError wraps err so that errors.Is(err, ErrAllocFailed) holds.
func newAllocError(l Layout, err error) *AllocError {
	if err == nil {
		err = ErrAllocFailed
	} else if !errors.Is(err, ErrAllocFailed) {
		err = fmt.Errorf("%w: %w", ErrAllocFailed, err)
	}
	return &AllocError{Layout: l, Err: err}
}

// CapacityOverflow is the fatal report for an unrepresentable request.
// Continuing would silently truncate data, so it never returns.
func CapacityOverflow() {
	panic(ErrCapacityOverflow)
}

// AllocFailure is the fatal out-of-memory report. It never returns.
func AllocFailure(l Layout) {
	panic(&AllocError{Layout: l, Err: ErrAllocFailed})
}
