package arena

import (
	"sync"
	"unsafe"
)

// SafeArena is a mutex-protected wrapper around Arena for callers that must
// share one arena between goroutines. Every operation takes the lock, so it
// is slower than a bare Arena; prefer one Arena per goroutine.
type SafeArena struct {
	mu sync.Mutex
	a  *Arena
}

// NewSafeArena creates a new thread-safe arena.
func NewSafeArena(opts ...Option) *SafeArena {
	return &SafeArena{a: New(opts...)}
}

// WrapSafe wraps an existing arena. The caller must stop using a directly.
func WrapSafe(a *Arena) *SafeArena {
	return &SafeArena{a: a}
}

// AllocLayout thread-safely allocates memory for l.
func (s *SafeArena) AllocLayout(l Layout) unsafe.Pointer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.AllocLayout(l)
}

// AllocBytes thread-safely allocates n bytes and returns a slice pointing to them.
// Returns nil if n <= 0.
func (s *SafeArena) AllocBytes(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.AllocBytes(n)
}

// Reset thread-safely resets the arena for reuse. Callers must ensure no
// goroutine still holds memory from it.
func (s *SafeArena) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Reset()
}

// Release thread-safely returns every chunk to the backing allocator.
func (s *SafeArena) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Release()
}

// With runs fn with exclusive access to the underlying arena.
func (s *SafeArena) With(fn func(a *Arena)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.a)
}

// Generic allocation functions for SafeArena

// SafeAlloc thread-safely moves v into the arena.
func SafeAlloc[T any](s *SafeArena, v T) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Alloc(s.a, v)
}

// SafeAllocWith thread-safely allocates a T initialized by f. f runs under
// the lock and must not use s.
func SafeAllocWith[T any](s *SafeArena, f func() T) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllocWith(s.a, f)
}

// SafeAllocZeroed thread-safely returns a pointer to a zero T.
func SafeAllocZeroed[T any](s *SafeArena) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllocZeroed[T](s.a)
}

// SafeAllocSlice thread-safely allocates a zeroed slice of n elements of type T.
func SafeAllocSlice[T any](s *SafeArena, n int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllocSlice[T](s.a, n)
}

// SafeAllocSliceCopy thread-safely copies src into the arena.
func SafeAllocSliceCopy[T any](s *SafeArena, src []T) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllocSliceCopy(s.a, src)
}

// SafeAllocStr thread-safely copies str into the arena.
func SafeAllocStr(s *SafeArena, str string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllocStr(s.a, str)
}
