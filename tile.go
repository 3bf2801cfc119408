package livemap

import (
	"fmt"
	"strconv"
	"strings"
)

// TileCoord is the projection position of a tile's top-left corner. It is
// always aligned to TileWidth / TileHeight and is used directly as a map key.
type TileCoord struct {
	X int
	Y int
}

// Name is the file stem used for the tile's image and in the update feed.
func (c TileCoord) Name() string {
	return fmt.Sprintf("%d_%d", c.X, c.Y)
}

func (c TileCoord) String() string {
	return fmt.Sprintf("tile(%d, %d)", c.X, c.Y)
}

// ParseTileName reverses TileCoord.Name, accepting an optional .png suffix.
func ParseTileName(name string) (TileCoord, error) {
	name = strings.TrimSuffix(name, ".png")
	xs, ys, ok := strings.Cut(name, "_")
	if !ok {
		return TileCoord{}, fmt.Errorf("invalid tile name %q", name)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return TileCoord{}, fmt.Errorf("invalid tile name %q: %w", name, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return TileCoord{}, fmt.Errorf("invalid tile name %q: %w", name, err)
	}
	c := TileCoord{X: x, Y: y}
	if TileAt(x, y) != c {
		return TileCoord{}, fmt.Errorf("tile name %q is not grid aligned", name)
	}
	return c, nil
}

// Tile is the record kept for every tile that has ever been referenced.
// Records are never evicted.
type Tile struct {
	Coord TileCoord

	// dirty is true iff the tile sits in the stale queue. Regenerate also
	// reads it as a visited marker; both uses only go through push / pop.
	dirty bool

	// failed renders since the last success
	attempts int
}

// tile returns the record for c, creating it on first reference. Callers
// must hold the manager lock.
func (m *Manager) tile(c TileCoord) *Tile {
	t, ok := m.tiles[c]
	if !ok {
		t = &Tile{Coord: c}
		m.tiles[c] = t
	}
	return t
}

// TileCount returns the number of tile records created so far.
func (m *Manager) TileCount() int {
	m.Lock()
	defer m.Unlock()
	return len(m.tiles)
}
