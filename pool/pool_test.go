package pool

import (
	"context"
	"strings"
	"testing"

	"github.com/alecthomas/units"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jstoolkit/arena"
	"github.com/jstoolkit/arena/strbuf"
	"github.com/jstoolkit/arena/vec"
)

// chunkBytes is what every new arena of testConfig obtains.
var chunkBytes = uint64(arena.InitialChunkSize(4 * 1024))

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCapacity = ByteSize(4 * units.KiB)
	cfg.MaxRetainedCapacity = ByteSize(64 * units.KiB)
	cfg.MaxIdle = 2
	return cfg
}

func newTestPool(t *testing.T, cfg Config, reg prometheus.Registerer) *Pool {
	t.Helper()
	p, err := New(cfg, log.NewNopLogger(), reg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backing = "disk"
	_, err := New(cfg, nil, nil)
	assert.ErrorIs(t, err, errUnsupportedBacking)
}

func TestGetPut(t *testing.T) {
	p := newTestPool(t, testConfig(), nil)

	a, err := p.Get()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.Capacity(), 4*1024)
	assert.Equal(t, chunkBytes, p.LiveBytes())
	arena.AllocStr(a, "module.exports")

	p.Put(a)
	assert.Equal(t, 1, p.Idle())

	// The same arena comes back, already reset.
	b, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 0, b.UsedBytes())
	assert.Equal(t, 0, p.Idle())
	p.Put(b)
}

func TestPutDiscardsLargeArenas(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	p := newTestPool(t, testConfig(), reg)

	a, err := p.Get()
	require.NoError(t, err)
	a.AllocBytes(100 * 1024)
	p.Put(a)
	assert.Equal(t, 0, p.Idle())
	assert.Equal(t, uint64(0), p.LiveBytes())

	expected := `
# HELP arena_pool_discarded_total Total number of arenas released instead of being kept for reuse.
# TYPE arena_pool_discarded_total counter
arena_pool_discarded_total 1
# HELP arena_pool_gets_total Total number of arenas handed out by the pool.
# TYPE arena_pool_gets_total counter
arena_pool_gets_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"arena_pool_discarded_total", "arena_pool_gets_total"))
}

func TestPutKeepsAtMostMaxIdle(t *testing.T) {
	p := newTestPool(t, testConfig(), nil)

	var arenas []*arena.Arena
	for i := 0; i < 4; i++ {
		a, err := p.Get()
		require.NoError(t, err)
		arenas = append(arenas, a)
	}
	for _, a := range arenas {
		p.Put(a)
	}
	assert.Equal(t, 2, p.Idle())
	assert.Equal(t, 2*chunkBytes, p.LiveBytes())
}

func TestPutForeignArena(t *testing.T) {
	p := newTestPool(t, testConfig(), nil)
	assert.Panics(t, func() { p.Put(arena.New()) })
}

func TestMemoryLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryLimit = ByteSize(2 * chunkBytes)
	p := newTestPool(t, cfg, nil)

	a, err := p.Get()
	require.NoError(t, err)
	b, err := p.Get()
	require.NoError(t, err)

	_, err = p.Get()
	assert.ErrorIs(t, err, ErrMemoryLimit)

	p.Put(a)
	c, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, a, c)

	p.Put(b)
	p.Put(c)
}

func TestClose(t *testing.T) {
	p, err := New(testConfig(), log.NewNopLogger(), nil)
	require.NoError(t, err)

	a, err := p.Get()
	require.NoError(t, err)
	b, err := p.Get()
	require.NoError(t, err)
	p.Put(a)

	p.Close()
	assert.Equal(t, 0, p.Idle())
	assert.Equal(t, chunkBytes, p.LiveBytes())

	_, err = p.Get()
	assert.ErrorIs(t, err, ErrClosed)

	// Arenas still out are released when they come back.
	p.Put(b)
	assert.Equal(t, uint64(0), p.LiveBytes())
}

func TestMmapBacking(t *testing.T) {
	cfg := testConfig()
	cfg.Backing = BackingMmap
	p := newTestPool(t, cfg, nil)

	err := p.Do(func(a *arena.Arena) error {
		ids := arena.AllocSlice[uint32](a, 1000)
		for i := range ids {
			ids[i] = uint32(i)
		}
		assert.Equal(t, uint32(999), ids[999])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Idle())
}

func TestGaugeMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	p := newTestPool(t, testConfig(), reg)

	require.NoError(t, p.Do(func(*arena.Arena) error { return nil }))

	expected := `
# HELP arena_pool_idle_arenas Number of idle arenas waiting for reuse.
# TYPE arena_pool_idle_arenas gauge
arena_pool_idle_arenas 1
# HELP arena_pool_live_bytes Bytes of chunk memory currently held by arenas of the pool.
# TYPE arena_pool_live_bytes gauge
arena_pool_live_bytes 8176
# HELP arena_pool_created_total Total number of arenas created because none was idle.
# TYPE arena_pool_created_total counter
arena_pool_created_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"arena_pool_idle_arenas", "arena_pool_live_bytes", "arena_pool_created_total"))
}

// TestConcurrentWorkers runs one arena per goroutine the way a toolchain
// processes files in parallel.
func TestConcurrentWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIdle = 4
	p := newTestPool(t, cfg, nil)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(4)
	for file := 0; file < 32; file++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.Do(func(a *arena.Arena) error {
				names := vec.New[string](a)
				for i := 0; i < 100; i++ {
					b := strbuf.New(a)
					b.WriteString("ident_")
					b.WriteByteRepeat('x', i%7)
					names.Push(b.Finish())
				}
				if names.Len() != 100 || names.Get(99) != "ident_x" {
					return assert.AnError
				}
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, p.Idle(), 4)
}

func BenchmarkPool(b *testing.B) {
	p, err := New(testConfig(), nil, nil)
	require.NoError(b, err)
	defer p.Close()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = p.Do(func(a *arena.Arena) error {
				arena.AllocSlice[uint64](a, 64)
				return nil
			})
		}
	})
}
