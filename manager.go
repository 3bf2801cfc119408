package livemap

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultRenderWait       = 500 * time.Millisecond
	DefaultIdleInterval     = 1000 * time.Millisecond
	DefaultMaxRenderRetries = 3
)

var ErrManagerRunning = errors.New("map renderer is already running")

// HeightSource answers the height of the highest block in a world column.
// A height below 1 means the column holds nothing worth rendering.
type HeightSource interface {
	HeightAt(x, z int) int
}

type ManagerOpts struct {
	Anchor       Anchor
	RenderWait   time.Duration
	IdleInterval time.Duration
	Retention    time.Duration

	// MaxRenderRetries caps how often a failing tile is re-queued. Zero
	// selects DefaultMaxRenderRetries, a negative value disables retries.
	MaxRenderRetries int

	// DebugPlayer, when set, receives a trace of every tile going stale.
	DebugPlayer string
	Notifier    Notifier
}

// Manager tracks which map tiles are stale and runs the single background
// worker that re-renders them.
type Manager struct {
	sync.Mutex

	opts     ManagerOpts
	renderer TileRenderer
	heights  HeightSource

	tiles     map[TileCoord]*Tile
	stale     staleQueue
	history   updateHistory
	hooks     []func(TileCoord)
	rendering bool

	wake   chan struct{}
	cancel func()
	done   chan struct{}

	now func() time.Time
	log *logrus.Entry
}

func NewManager(opts ManagerOpts, renderer TileRenderer, heights HeightSource) *Manager {
	if opts.RenderWait <= 0 {
		opts.RenderWait = DefaultRenderWait
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.MaxRenderRetries == 0 {
		opts.MaxRenderRetries = DefaultMaxRenderRetries
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}

	return &Manager{
		opts:     opts,
		renderer: renderer,
		heights:  heights,
		tiles:    make(map[TileCoord]*Tile),
		history:  updateHistory{retention: opts.Retention},
		wake:     make(chan struct{}, 1),
		now:      time.Now,
		log:      logrus.WithField("component", "manager"),
	}
}

// Anchor returns the projection anchor the manager was configured with.
func (m *Manager) Anchor() Anchor {
	return m.opts.Anchor
}

// OnRender registers fn to run on the worker after each successful render.
func (m *Manager) OnRender(fn func(TileCoord)) {
	m.Lock()
	defer m.Unlock()
	m.hooks = append(m.hooks, fn)
}

// pushLocked queues t and wakes an idle worker. Callers hold the lock.
func (m *Manager) pushLocked(t *Tile) bool {
	if !m.stale.push(t) {
		return false
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// PushStale queues the tile at c for rendering.
func (m *Manager) PushStale(c TileCoord) bool {
	m.Lock()
	pushed := m.pushLocked(m.tile(c))
	m.Unlock()

	if pushed {
		m.traceStale(c)
	}
	return pushed
}

func (m *Manager) popStale() *Tile {
	m.Lock()
	defer m.Unlock()
	t := m.stale.pop()
	m.rendering = t != nil
	return t
}

// StaleCount returns the number of tiles waiting for a render.
func (m *Manager) StaleCount() int {
	m.Lock()
	defer m.Unlock()
	return m.stale.len()
}

// UpdateCount returns the number of recently rendered tiles.
func (m *Manager) UpdateCount() int {
	m.Lock()
	defer m.Unlock()
	return len(m.history.updates)
}

// Updates returns the recent render history, oldest first.
func (m *Manager) Updates() []TileUpdate {
	m.Lock()
	defer m.Unlock()
	return m.history.snapshot()
}

// UpdatesSince returns the renders completed after t, oldest first.
func (m *Manager) UpdatesSince(t time.Time) []TileUpdate {
	m.Lock()
	defer m.Unlock()
	return m.history.since(t)
}

func (m *Manager) traceStale(coords ...TileCoord) {
	if m.opts.DebugPlayer == "" {
		return
	}
	for _, c := range coords {
		m.opts.Notifier.Notify(m.opts.DebugPlayer, "Map> "+c.String()+" is now stale")
	}
}
