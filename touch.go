package livemap

// Touch marks the tile containing a changed block as stale, along with any
// neighbour whose edge lies within EdgeMargin of the block's projection. It
// reports whether any tile newly went stale.
func (m *Manager) Touch(x, y, z int) bool {
	px, py := m.opts.Anchor.Project(x, y, z)
	self := TileAt(px, py)

	left := AlignDown(px-EdgeMargin, TileWidth) != self.X
	right := AlignDown(px+EdgeMargin, TileWidth) != self.X
	top := AlignDown(py-EdgeMargin, TileHeight) != self.Y
	bottom := AlignDown(py+EdgeMargin, TileHeight) != self.Y

	targets := make([]TileCoord, 1, 9)
	targets[0] = self

	var dxs, dys []int
	if left {
		dxs = append(dxs, -TileWidth)
	}
	if right {
		dxs = append(dxs, TileWidth)
	}
	if top {
		dys = append(dys, -TileHeight)
	}
	if bottom {
		dys = append(dys, TileHeight)
	}

	for _, dx := range dxs {
		targets = append(targets, TileCoord{X: self.X + dx, Y: self.Y})
	}
	for _, dy := range dys {
		targets = append(targets, TileCoord{X: self.X, Y: self.Y + dy})
	}
	for _, dx := range dxs {
		for _, dy := range dys {
			targets = append(targets, TileCoord{X: self.X + dx, Y: self.Y + dy})
		}
	}

	var fresh []TileCoord
	m.Lock()
	for _, c := range targets {
		if m.pushLocked(m.tile(c)) {
			fresh = append(fresh, c)
		}
	}
	m.Unlock()

	m.traceStale(fresh...)
	return len(fresh) > 0
}
