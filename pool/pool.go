// Package pool recycles arenas between units of work, such as the files a
// linter processes on a set of worker goroutines.
package pool

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jstoolkit/arena"
)

var (
	// ErrClosed is returned by Get after Close.
	ErrClosed = errors.New("arena pool closed")

	// ErrMemoryLimit is returned by Get when a new arena would exceed the
	// configured memory limit.
	ErrMemoryLimit = errors.New("arena pool memory limit reached")
)

// Pool hands out arenas and takes them back for reuse. The Pool is safe for
// concurrent use; each arena it hands out is used by one goroutine at a time.
type Pool struct {
	cfg     Config
	backing *arena.TrackingAllocator
	logger  log.Logger

	mu     sync.Mutex
	idle   []*arena.Arena
	closed bool

	gets      prometheus.Counter
	created   prometheus.Counter
	discarded prometheus.Counter
}

// New creates a Pool. reg may be nil to skip metric registration.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid arena pool config")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	var inner arena.Allocator = arena.DefaultAllocator
	if cfg.Backing == BackingMmap {
		inner = arena.NewMmapAllocator()
	}

	p := &Pool{
		cfg:     cfg,
		backing: arena.NewTrackingAllocator(inner, uint64(cfg.MemoryLimit)),
		logger:  logger,
		idle:    make([]*arena.Arena, 0, cfg.MaxIdle),

		gets: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arena_pool_gets_total",
			Help: "Total number of arenas handed out by the pool.",
		}),
		created: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arena_pool_created_total",
			Help: "Total number of arenas created because none was idle.",
		}),
		discarded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arena_pool_discarded_total",
			Help: "Total number of arenas released instead of being kept for reuse.",
		}),
	}

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "arena_pool_idle_arenas",
		Help: "Number of idle arenas waiting for reuse.",
	}, func() float64 {
		return float64(p.Idle())
	})
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "arena_pool_live_bytes",
		Help: "Bytes of chunk memory currently held by arenas of the pool.",
	}, func() float64 {
		return float64(p.backing.LiveBytes())
	})

	return p, nil
}

// Get returns an empty arena, reusing an idle one when possible.
func (p *Pool) Get() (*arena.Arena, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.gets.Inc()
	if n := len(p.idle); n > 0 {
		a := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		return a, nil
	}

	// Checked under the lock so concurrent Gets cannot overshoot together.
	// Arenas growing past the limit later still fail fatally.
	need := uint64(arena.InitialChunkSize(int(p.cfg.InitialCapacity)))
	if limit := p.backing.Limit(); limit > 0 && p.backing.LiveBytes()+need > limit {
		return nil, errors.Wrapf(ErrMemoryLimit, "%d of %d bytes live", p.backing.LiveBytes(), limit)
	}
	p.created.Inc()
	return arena.WithCapacity(int(p.cfg.InitialCapacity), arena.WithBacking(p.backing), arena.WithLogger(p.logger)), nil
}

// Put resets a and keeps it for reuse, or releases it when the pool is
// full, closed, or a grew beyond the retained capacity limit. a must come
// from this pool and must not be used afterwards.
func (p *Pool) Put(a *arena.Arena) {
	if a.Backing() != arena.Allocator(p.backing) {
		panic("pool: arena does not belong to this pool")
	}
	a.Reset()

	p.mu.Lock()
	keep := !p.closed && len(p.idle) < p.cfg.MaxIdle && a.Capacity() <= int(p.cfg.MaxRetainedCapacity)
	if keep {
		p.idle = append(p.idle, a)
	}
	p.mu.Unlock()

	if !keep {
		level.Debug(p.logger).Log("msg", "releasing arena instead of pooling it", "capacity", a.Capacity())
		p.discarded.Inc()
		a.Release()
	}
}

// Do runs fn with an arena from the pool and returns the arena afterwards.
// Nothing allocated from the arena may be retained past fn.
func (p *Pool) Do(fn func(a *arena.Arena) error) error {
	a, err := p.Get()
	if err != nil {
		return err
	}
	defer p.Put(a)
	return fn(a)
}

// Idle returns the number of idle arenas.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// LiveBytes returns the chunk memory currently held by arenas of the pool,
// idle and in use.
func (p *Pool) LiveBytes() uint64 {
	return p.backing.LiveBytes()
}

// Close releases every idle arena. Arenas still in use are released when
// they are Put back.
func (p *Pool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, a := range idle {
		a.Release()
	}
	level.Debug(p.logger).Log("msg", "arena pool closed", "released", len(idle), "live_bytes", p.backing.LiveBytes())
}
