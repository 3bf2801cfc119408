package livemap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkerRendersInOrder(t *testing.T) {
	renderer := newRecordingRenderer()
	m := newTestManager(renderer, nil)

	order := []TileCoord{{0, 0}, {128, 0}, {0, 128}}
	for _, c := range order {
		m.PushStale(c)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	eventually(t, "all tiles rendered", func() bool {
		return m.UpdateCount() == len(order)
	})

	if diff := cmp.Diff(order, renderer.Rendered()); diff != "" {
		t.Fatalf("unexpected render order (-want +got):\n%s", diff)
	}

	var history []TileCoord
	for _, u := range m.Updates() {
		history = append(history, u.Tile)
	}
	if diff := cmp.Diff(order, history); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
	if got := m.StaleCount(); got != 0 {
		t.Fatalf("expected drained queue, got %d", got)
	}
}

func TestWorkerWakesOnPush(t *testing.T) {
	renderer := newRecordingRenderer()
	m := NewManager(ManagerOpts{
		RenderWait:   time.Millisecond,
		IdleInterval: time.Hour,
	}, renderer, flatWorld)

	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	// give the worker time to go idle
	time.Sleep(20 * time.Millisecond)
	m.PushStale(TileCoord{})

	eventually(t, "idle worker to pick up a push", func() bool {
		return len(renderer.Rendered()) == 1
	})
}

func TestWorkerStopIsPrompt(t *testing.T) {
	m := NewManager(ManagerOpts{
		RenderWait:   time.Hour,
		IdleInterval: time.Hour,
	}, newRecordingRenderer(), flatWorld)

	m.PushStale(TileCoord{})
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	eventually(t, "first render", func() bool {
		return m.UpdateCount() == 1
	})

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop blocked on the render wait")
	}
	if m.Running() {
		t.Fatalf("expected worker to be stopped")
	}
}

func TestWorkerStartTwice(t *testing.T) {
	m := newTestManager(nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	if err := m.Start(); !errors.Is(err, ErrManagerRunning) {
		t.Fatalf("expected ErrManagerRunning, got %v", err)
	}
}

func TestWorkerStopWithoutStart(t *testing.T) {
	m := newTestManager(nil, nil)
	m.Stop()
	m.Stop()
}

func TestWorkerRetriesFailedRenders(t *testing.T) {
	renderer := newRecordingRenderer()
	bad := TileCoord{X: 128}
	good := TileCoord{X: 256}
	renderer.fail[bad] = errors.New("disk full")

	m := NewManager(ManagerOpts{
		RenderWait:       time.Millisecond,
		IdleInterval:     5 * time.Millisecond,
		MaxRenderRetries: 2,
	}, renderer, flatWorld)

	m.PushStale(bad)
	m.PushStale(good)

	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	eventually(t, "retries to be exhausted", func() bool {
		return renderer.Calls(bad) == 3 && m.StaleCount() == 0
	})

	// dropped tiles are not retried again on their own
	time.Sleep(30 * time.Millisecond)
	if got := renderer.Calls(bad); got != 3 {
		t.Fatalf("expected 3 render attempts, got %d", got)
	}

	for _, u := range m.Updates() {
		if u.Tile == bad {
			t.Fatalf("failed tile must not appear in history")
		}
	}
	if diff := cmp.Diff([]TileCoord{good}, renderer.Rendered()); diff != "" {
		t.Fatalf("unexpected renders (-want +got):\n%s", diff)
	}

	// a fresh touch makes the tile eligible again
	renderer.Lock()
	delete(renderer.fail, bad)
	renderer.Unlock()
	m.PushStale(bad)
	eventually(t, "tile to render after recovery", func() bool {
		return len(renderer.Rendered()) == 2
	})
}

func TestWorkerNoRetries(t *testing.T) {
	renderer := newRecordingRenderer()
	bad := TileCoord{}
	renderer.fail[bad] = errors.New("broken")

	m := NewManager(ManagerOpts{
		RenderWait:       time.Millisecond,
		IdleInterval:     5 * time.Millisecond,
		MaxRenderRetries: -1,
	}, renderer, flatWorld)
	m.PushStale(bad)

	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	eventually(t, "single attempt", func() bool {
		return renderer.Calls(bad) == 1 && m.StaleCount() == 0
	})
}

func TestWorkerRequeuesInterruptedRender(t *testing.T) {
	started := make(chan struct{})
	renderer := TileRendererFunc(func(ctx context.Context, c TileCoord) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	m := newTestManager(renderer, nil)
	m.PushStale(TileCoord{})
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	<-started
	m.Stop()

	if got := m.StaleCount(); got != 1 {
		t.Fatalf("expected interrupted tile to be queued again, got %d", got)
	}
	if got := m.UpdateCount(); got != 0 {
		t.Fatalf("expected no completed renders, got %d", got)
	}
}

func TestWorkerRunsHooks(t *testing.T) {
	m := newTestManager(nil, nil)

	var calls atomic.Int32
	m.OnRender(func(c TileCoord) {
		if c == (TileCoord{X: 128, Y: 128}) {
			calls.Add(1)
		}
	})

	m.PushStale(TileCoord{X: 128, Y: 128})
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	eventually(t, "render hook", func() bool {
		return calls.Load() == 1
	})
}

func TestWaitDrained(t *testing.T) {
	m := newTestManager(nil, nil)
	for i := 0; i < 5; i++ {
		m.PushStale(TileCoord{X: i * TileWidth})
	}
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitDrained(ctx, time.Millisecond); err != nil {
		t.Fatalf("failed to drain: %v", err)
	}
	if got := m.UpdateCount(); got != 5 {
		t.Fatalf("expected 5 updates, got %d", got)
	}
}

// blockingRenderer ignores cancellation and holds every render until release
// is closed. peak is the highest number of overlapping calls.
type blockingRenderer struct {
	started chan TileCoord
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (r *blockingRenderer) RenderTile(ctx context.Context, c TileCoord) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	r.started <- c
	<-r.release
	return nil
}

func TestWorkerStartWhileStopping(t *testing.T) {
	renderer := &blockingRenderer{
		started: make(chan TileCoord, 8),
		release: make(chan struct{}),
	}
	m := newTestManager(renderer, nil)
	m.PushStale(TileCoord{})
	m.PushStale(TileCoord{X: TileWidth})

	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	<-renderer.started

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)

	if err := m.Start(); !errors.Is(err, ErrManagerRunning) {
		t.Fatalf("expected ErrManagerRunning while stopping, got %v", err)
	}
	if !m.Running() {
		t.Fatalf("expected worker to count as running until it exits")
	}

	close(renderer.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return after the render finished")
	}
	if m.Running() {
		t.Fatalf("expected worker to be stopped")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("failed to restart: %v", err)
	}
	defer m.Stop()

	eventually(t, "both tiles rendered", func() bool {
		return m.UpdateCount() == 2
	})
	if got := renderer.peak.Load(); got != 1 {
		t.Fatalf("expected one render at a time, saw %d", got)
	}
}

func TestRegenerateWhileWorkerRuns(t *testing.T) {
	var island []TileCoord
	for x := -8; x < 8; x++ {
		for y := -8; y < 8; y++ {
			island = append(island, TileCoord{X: x * TileWidth, Y: y * TileHeight})
		}
	}

	renderer := newRecordingRenderer()
	m := NewManager(ManagerOpts{
		RenderWait:   time.Microsecond,
		IdleInterval: time.Millisecond,
	}, renderer, islandHeights(Anchor{}, island...))

	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	if got := m.Regenerate(0, 0, 0); got != len(island) {
		t.Fatalf("expected %d tiles queued, got %d", len(island), got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitDrained(ctx, time.Millisecond); err != nil {
		t.Fatalf("failed to drain: %v", err)
	}

	for _, c := range island {
		if got := renderer.Calls(c); got != 1 {
			t.Fatalf("expected %v to render once, got %d", c, got)
		}
	}
	if got := len(renderer.Rendered()); got != len(island) {
		t.Fatalf("expected %d renders, got %d", len(island), got)
	}
	if got := m.StaleCount(); got != 0 {
		t.Fatalf("expected drained queue, got %d", got)
	}
}

// queueViolation checks that queue membership and dirty flags agree. Callers
// hold the lock.
func queueViolation(m *Manager) string {
	queued := map[*Tile]bool{}
	for _, t := range m.stale.items[m.stale.head:] {
		if queued[t] {
			return t.Coord.String() + " queued twice"
		}
		queued[t] = true
		if !t.dirty {
			return t.Coord.String() + " queued without dirty flag"
		}
	}
	for _, t := range m.tiles {
		if t.dirty && !queued[t] {
			return t.Coord.String() + " dirty but not queued"
		}
	}
	return ""
}

func TestConcurrentTouchesWhileDraining(t *testing.T) {
	m := newTestManager(nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer m.Stop()

	done := make(chan struct{})
	violation := make(chan string, 1)
	go func() {
		defer close(violation)
		for {
			select {
			case <-done:
				return
			default:
			}
			m.Lock()
			v := queueViolation(m)
			m.Unlock()
			if v != "" {
				violation <- v
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				m.Touch((i%16)*8, 0, g*8)
			}
		}(g)
	}
	wg.Wait()
	close(done)

	if v, ok := <-violation; ok {
		t.Fatalf("queue invariant broken: %s", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitDrained(ctx, time.Millisecond); err != nil {
		t.Fatalf("failed to drain: %v", err)
	}
	m.Lock()
	v := queueViolation(m)
	m.Unlock()
	if v != "" {
		t.Fatalf("queue invariant broken after drain: %s", v)
	}
}
