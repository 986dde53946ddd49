package arena

import (
	"runtime"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSafeArena(t *testing.T) {
	s := NewSafeArena()
	require.NotNil(t, s)
	require.NotNil(t, s.a)
	assert.Equal(t, 0, s.NumChunks())
}

func TestSafeArenaAllocBytes(t *testing.T) {
	s := NewSafeArena()
	defer s.Release()

	assert.Len(t, s.AllocBytes(100), 100)
	assert.Nil(t, s.AllocBytes(0))
	assert.Nil(t, s.AllocBytes(-1))

	p := s.AllocLayout(Layout{Size: 16, Align: 16})
	assert.Zero(t, uintptr(p)%16)
}

func TestSafeArenaOperations(t *testing.T) {
	tr := NewTrackingAllocator(nil, 0)
	s := NewSafeArena(WithBacking(tr))

	s.AllocBytes(100)
	assert.NotZero(t, s.UsedBytes())

	s.Reset()
	assert.Equal(t, 0, s.UsedBytes())
	assert.Equal(t, 1, s.NumChunks())

	s.Release()
	assert.Equal(t, 0, s.NumChunks())
	assert.Equal(t, uint64(0), tr.LiveBytes())

	// Usable again after release.
	assert.Len(t, s.AllocBytes(8), 8)
	s.Release()
}

func TestWrapSafe(t *testing.T) {
	a := WithCapacity(1024)
	s := WrapSafe(a)
	defer s.Release()

	assert.Equal(t, a.Capacity(), s.Capacity())
	s.With(func(inner *Arena) {
		assert.Same(t, a, inner)
		Alloc(inner, 1)
	})
	assert.Equal(t, 8, s.UsedBytes())
}

func TestSafeAllocFunctions(t *testing.T) {
	s := NewSafeArena()
	defer s.Release()

	ptr := SafeAlloc(s, 42)
	assert.Equal(t, 42, *ptr)

	ptr2 := SafeAllocZeroed[int64](s)
	assert.Equal(t, int64(0), *ptr2)

	ptr3 := SafeAllocWith(s, func() testStruct { return testStruct{a: 5} })
	assert.Equal(t, int64(5), ptr3.a)

	slice := SafeAllocSlice[int](s, 5)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, slice)

	cp := SafeAllocSliceCopy(s, []int{1, 2, 3})
	assert.Equal(t, []int{1, 2, 3}, cp)

	str := SafeAllocStr(s, "window")
	assert.Equal(t, "window", str)

	s.With(func(a *Arena) {
		assert.True(t, a.Contains(unsafe.Pointer(ptr)))
		assert.True(t, a.Contains(unsafe.Pointer(unsafe.StringData(str))))
	})
}

func TestSafeArenaConcurrency(t *testing.T) {
	s := NewSafeArena()
	defer s.Release()
	const numGoroutines = 10
	const numAllocsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numAllocsPerGoroutine; j++ {
				// Mix different allocation types
				switch j % 4 {
				case 0:
					s.AllocBytes(64)
				case 1:
					SafeAlloc(s, id)
				case 2:
					SafeAllocSlice[byte](s, 32)
				case 3:
					SafeAllocStr(s, "identifier")
				}
			}
		}(i)
	}

	wg.Wait()

	// 25 of each kind per goroutine; ints are word aligned so padding may add up to 7 bytes each.
	minUsed := numGoroutines * 25 * (64 + 8 + 32 + 10)
	assert.GreaterOrEqual(t, s.UsedBytes(), minUsed)
	assert.LessOrEqual(t, s.UsedBytes(), minUsed+numGoroutines*25*7)
	assert.NotZero(t, s.NumChunks())
}

func TestSafeArenaConcurrentResetRelease(t *testing.T) {
	s := NewSafeArena()
	defer s.Release()
	const numWorkers = 5

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers-2; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.AllocBytes(32)
				runtime.Gosched() // Yield to allow other goroutines to run
			}
		}()
	}

	// Worker doing periodic resets
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			runtime.Gosched()
			s.Reset()
		}
	}()

	// Worker doing metrics reads
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = s.UsedBytes()
			_ = s.Utilization()
			_ = s.Stats()
			runtime.Gosched()
		}
	}()

	wg.Wait()
}

func BenchmarkSafeArena(b *testing.B) {
	s := WrapSafe(WithCapacity(1024 * 1024))

	b.Run("AllocBytes", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			s.AllocBytes(64)
			if i%1000 == 999 {
				s.Reset()
			}
		}
	})

	b.Run("SafeAlloc", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			SafeAlloc(s, i)
			if i%1000 == 999 {
				s.Reset()
			}
		}
	})
}

func BenchmarkSafeArenaConcurrent(b *testing.B) {
	s := WrapSafe(WithCapacity(1024 * 1024))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.AllocBytes(64)
			i++
			if i%1000 == 999 {
				s.Reset()
			}
		}
	})
}
