package livemap

// dimensions of a map tile in projection units
const (
	TileWidth  = 128
	TileHeight = 128
)

// EdgeMargin is how close (in projection units) a change must be to a tile
// edge before the neighbouring tile is invalidated as well. Rendering samples
// a small neighbourhood beyond the tile's nominal boundary.
const EdgeMargin = 4

// Anchor is the world point that maps to projection origin.
type Anchor struct {
	X int `hcl:"x,optional"`
	Y int `hcl:"y,optional"`
	Z int `hcl:"z,optional"`
}

var DefaultAnchor = Anchor{X: 0, Y: 127, Z: 0}

// Project maps a world coordinate onto the isometric projection plane.
func (a Anchor) Project(x, y, z int) (int, int) {
	dx := x - a.X
	dy := y - a.Y
	dz := z - a.Z
	return dx + dz, dx - dz - dy
}

// Column returns the world column (x, z) that sits at the origin of a tile
// when looking at the anchor's height.
func (a Anchor) Column(c TileCoord) (int, int) {
	return a.X + c.X/2 + c.Y/2, a.Z + c.X/2 - c.Y/2
}

// TileOf returns the tile containing the world coordinate.
func (a Anchor) TileOf(x, y, z int) TileCoord {
	return TileAt(a.Project(x, y, z))
}

// AlignDown returns the largest multiple of size that is <= v. Go's % keeps
// the sign of the dividend, so negative remainders are folded back.
func AlignDown(v, size int) int {
	r := v % size
	if r < 0 {
		r += size
	}
	return v - r
}

// TileAt returns the tile containing the projection point.
func TileAt(px, py int) TileCoord {
	return TileCoord{X: AlignDown(px, TileWidth), Y: AlignDown(py, TileHeight)}
}
