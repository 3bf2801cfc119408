package livemap

import (
	"context"
	"errors"
	"time"
)

// Start launches the render worker. It returns ErrManagerRunning if the
// worker is already up.
func (m *Manager) Start() error {
	m.Lock()
	if m.cancel != nil {
		m.Unlock()
		return ErrManagerRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.Unlock()

	go m.run(ctx, done)
	return nil
}

// Stop cancels the worker and blocks until it has exited. A render in
// progress receives the cancellation through its context. The worker counts
// as running until it has exited, so Start fails while a Stop is waiting.
func (m *Manager) Stop() {
	m.Lock()
	cancel, done := m.cancel, m.done
	m.Unlock()

	if cancel == nil {
		return
	}

	m.log.Info("stopping map renderer...")
	cancel()
	<-done

	m.Lock()
	if m.done == done {
		m.cancel = nil
		m.done = nil
	}
	m.Unlock()
}

// Running reports whether the worker goroutine is active.
func (m *Manager) Running() bool {
	m.Lock()
	defer m.Unlock()
	return m.cancel != nil
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	m.log.Info("map renderer has started")

	for ctx.Err() == nil {
		t := m.popStale()
		if t == nil {
			m.waitIdle(ctx)
			continue
		}

		m.render(ctx, t)
		wait(ctx, m.opts.RenderWait)
	}

	m.log.Info("map renderer has stopped")
}

func (m *Manager) render(ctx context.Context, t *Tile) {
	start := time.Now()
	err := m.renderer.RenderTile(ctx, t.Coord)

	if err != nil {
		m.Lock()
		m.rendering = false
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// interrupted by shutdown, not a failure of the tile
			m.pushLocked(t)
			m.Unlock()
			return
		}

		t.attempts++
		attempts := t.attempts
		retry := attempts <= m.opts.MaxRenderRetries
		if retry {
			m.pushLocked(t)
		} else {
			t.attempts = 0
		}
		m.Unlock()

		if retry {
			m.log.Warnf("failed to render %v (attempt %d), requeued: %v", t.Coord, attempts, err)
		} else {
			m.log.Errorf("failed to render %v after %d attempts, dropping: %v", t.Coord, attempts, err)
		}
		return
	}

	now := m.now()
	m.Lock()
	m.rendering = false
	t.attempts = 0
	m.history.add(t.Coord, now)
	hooks := m.hooks
	m.Unlock()

	m.log.Debugf("rendered %v in %dms", t.Coord, time.Since(start).Milliseconds())
	for _, hook := range hooks {
		hook(t.Coord)
	}
}

func (m *Manager) waitIdle(ctx context.Context) {
	timer := time.NewTimer(m.opts.IdleInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-timer.C:
	}
}

// WaitDrained blocks until the stale queue is empty and no render is in
// flight, polling every interval.
func (m *Manager) WaitDrained(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.Lock()
		drained := m.stale.len() == 0 && !m.rendering
		m.Unlock()
		if drained {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
