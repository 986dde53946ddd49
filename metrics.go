package arena

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// UsedBytes returns the number of bytes bumped across all chunks.
// This over-counts live data: it includes alignment padding, spare capacity
// inside growable buffers and allocations nothing refers to any more.
func (a *Arena) UsedBytes() int {
	sum := 0
	a.current.chunks(func(c *chunkFooter) bool {
		sum += c.usedBytes()
		return true
	})
	return sum
}

// Capacity returns the total usable capacity (in bytes) of all chunks.
func (a *Arena) Capacity() int {
	sum := 0
	a.current.chunks(func(c *chunkFooter) bool {
		sum += c.capacity()
		return true
	})
	return sum
}

// NumChunks returns the number of chunks currently held by the arena.
func (a *Arena) NumChunks() int {
	n := 0
	a.current.chunks(func(*chunkFooter) bool {
		n++
		return true
	})
	return n
}

// FreeBytes returns the bytes still available in the current chunk without
// obtaining a new one.
func (a *Arena) FreeBytes() int {
	return a.current.freeBytes()
}

// Utilization returns the ratio of bytes in use to total capacity (0.0 to 1.0).
// Returns 0.0 if the arena has no capacity.
func (a *Arena) Utilization() float64 {
	capacity := a.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(a.UsedBytes()) / float64(capacity)
}

// Stats returns a snapshot of arena statistics.
func (a *Arena) Stats() Stats {
	s := Stats{}
	a.current.chunks(func(c *chunkFooter) bool {
		s.UsedBytes += c.usedBytes()
		s.Capacity += c.capacity()
		s.NumChunks++
		return true
	})
	s.FreeBytes = a.current.freeBytes()
	if s.Capacity > 0 {
		s.Utilization = float64(s.UsedBytes) / float64(s.Capacity)
	}
	return s
}

// Stats contains statistical information about an arena.
type Stats struct {
	UsedBytes   int     // Bytes bumped, padding included
	Capacity    int     // Total usable capacity in bytes
	FreeBytes   int     // Bytes left in the current chunk
	NumChunks   int     // Number of chunks
	Utilization float64 // Ratio of used to total capacity (0.0-1.0)
}

func (s Stats) String() string {
	return fmt.Sprintf("used=%s capacity=%s free=%s chunks=%d utilization=%.1f%%",
		humanize.IBytes(uint64(s.UsedBytes)),
		humanize.IBytes(uint64(s.Capacity)),
		humanize.IBytes(uint64(s.FreeBytes)),
		s.NumChunks,
		s.Utilization*100,
	)
}

// StatsSource is anything that can report arena statistics.
type StatsSource interface {
	Stats() Stats
}

var (
	_ StatsSource = (*Arena)(nil)
	_ StatsSource = (*SafeArena)(nil)
)

// Thread-safe metrics for SafeArena

// UsedBytes thread-safely returns the number of bytes bumped across all chunks.
func (s *SafeArena) UsedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.UsedBytes()
}

// NumChunks thread-safely returns the number of chunks currently held.
func (s *SafeArena) NumChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.NumChunks()
}

// Capacity thread-safely returns the total capacity of all chunks.
func (s *SafeArena) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Capacity()
}

// Utilization thread-safely returns the ratio of bytes in use to total capacity.
func (s *SafeArena) Utilization() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Utilization()
}

// Stats thread-safely returns a snapshot of arena statistics.
func (s *SafeArena) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Stats()
}
