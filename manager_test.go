package livemap

import (
	"context"
	"sync"
	"time"
)

type heightFunc func(x, z int) int

func (f heightFunc) HeightAt(x, z int) int {
	return f(x, z)
}

var flatWorld = heightFunc(func(x, z int) int { return 64 })

// recordingRenderer records rendered tiles and fails tiles listed in fail.
type recordingRenderer struct {
	sync.Mutex
	rendered []TileCoord
	fail     map[TileCoord]error
	calls    map[TileCoord]int
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		fail:  make(map[TileCoord]error),
		calls: make(map[TileCoord]int),
	}
}

func (r *recordingRenderer) RenderTile(ctx context.Context, c TileCoord) error {
	r.Lock()
	defer r.Unlock()
	r.calls[c]++
	if err, ok := r.fail[c]; ok {
		return err
	}
	r.rendered = append(r.rendered, c)
	return nil
}

func (r *recordingRenderer) Rendered() []TileCoord {
	r.Lock()
	defer r.Unlock()
	result := make([]TileCoord, len(r.rendered))
	copy(result, r.rendered)
	return result
}

func (r *recordingRenderer) Calls(c TileCoord) int {
	r.Lock()
	defer r.Unlock()
	return r.calls[c]
}

func newTestManager(renderer TileRenderer, heights HeightSource) *Manager {
	if renderer == nil {
		renderer = newRecordingRenderer()
	}
	if heights == nil {
		heights = flatWorld
	}
	return NewManager(ManagerOpts{
		Anchor:       Anchor{},
		RenderWait:   time.Millisecond,
		IdleInterval: 10 * time.Millisecond,
	}, renderer, heights)
}

// drain pops every queued tile without rendering.
func drain(m *Manager) []TileCoord {
	var result []TileCoord
	for {
		t := m.popStale()
		if t == nil {
			return result
		}
		result = append(result, t.Coord)
	}
}
