package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocate(t *testing.T) {
	a := New()
	defer a.Release()

	b, err := a.Allocate(Layout{Size: 24, Align: 8})
	require.NoError(t, err)
	assert.Len(t, b, 24)
	assert.Zero(t, addrOf(b)%8)
	assert.Equal(t, 24, a.UsedBytes())
}

func TestArenaGrowInPlace(t *testing.T) {
	a := New()
	defer a.Release()

	l := Layout{Size: 8, Align: 8}
	b, err := a.Allocate(l)
	require.NoError(t, err)
	fillPattern(b)

	grown, err := a.Grow(b, l, Layout{Size: 32, Align: 8})
	require.NoError(t, err)
	assert.Len(t, grown, 32)
	checkPattern(t, grown[:8])
	// The most recent block extends downward instead of being copied.
	assert.Equal(t, 32, a.UsedBytes())
	assert.Equal(t, addrOf(b)-24, addrOf(grown))
}

func TestArenaGrowCopies(t *testing.T) {
	a := New()
	defer a.Release()

	l := Layout{Size: 8, Align: 8}
	b, err := a.Allocate(l)
	require.NoError(t, err)
	fillPattern(b)
	a.AllocBytes(8) // b is no longer the most recent block

	grown, err := a.Grow(b, l, Layout{Size: 32, Align: 8})
	require.NoError(t, err)
	checkPattern(t, grown[:8])
	assert.Equal(t, 8+8+32, a.UsedBytes())
}

func TestArenaGrowAcrossChunks(t *testing.T) {
	a := New()
	defer a.Release()

	l := Layout{Size: 400, Align: 8}
	b, err := a.Allocate(l)
	require.NoError(t, err)
	fillPattern(b)

	grown, err := a.Grow(b, l, Layout{Size: 1000, Align: 8})
	require.NoError(t, err)
	checkPattern(t, grown[:400])
	assert.Equal(t, 2, a.NumChunks())
}

func TestArenaShrinkDeallocate(t *testing.T) {
	a := New()
	defer a.Release()

	l := Layout{Size: 64, Align: 8}
	b, err := a.Allocate(l)
	require.NoError(t, err)
	fillPattern(b)

	shrunk, err := a.Shrink(b, l, Layout{Size: 16, Align: 8})
	require.NoError(t, err)
	assert.Len(t, shrunk, 16)
	assert.Equal(t, 16, cap(shrunk))
	assert.Equal(t, addrOf(b), addrOf(shrunk))
	checkPattern(t, shrunk)

	// Neither reclaims memory.
	a.Deallocate(shrunk, Layout{Size: 16, Align: 8})
	assert.Equal(t, 64, a.UsedBytes())
}
