package livemap

// Regenerate marks every tile reachable from the block at (x, y, z) as
// stale. The walk spreads across grid neighbours and stops at tiles whose
// origin column is empty, and at tiles that are already stale for some other
// reason. It returns the number of tiles queued.
func (m *Manager) Regenerate(x, y, z int) int {
	start := m.opts.Anchor.TileOf(x, y, z)

	open := []TileCoord{start}
	visited := map[TileCoord]struct{}{}
	queued := 0

	for len(open) > 0 {
		c := open[len(open)-1]
		open = open[:len(open)-1]

		// the worker may pop tiles mid-walk, so dirty alone can't bound it
		if _, ok := visited[c]; ok {
			continue
		}
		visited[c] = struct{}{}

		m.Lock()
		t := m.tile(c)
		dirty := t.dirty
		m.Unlock()
		if dirty {
			continue
		}

		mx, mz := m.opts.Anchor.Column(c)
		h := m.heights.HeightAt(mx, mz)
		m.log.Debugf("walking: %d, %d, h = %d", mx, mz, h)
		if h < 1 {
			continue
		}

		m.Lock()
		pushed := m.pushLocked(t)
		m.Unlock()
		if !pushed {
			continue
		}
		queued++

		open = append(open,
			TileCoord{X: c.X + TileWidth, Y: c.Y},
			TileCoord{X: c.X - TileWidth, Y: c.Y},
			TileCoord{X: c.X, Y: c.Y + TileHeight},
			TileCoord{X: c.X, Y: c.Y - TileHeight},
		)
	}

	m.log.Infof("regenerate queued %d tiles", queued)
	return queued
}
