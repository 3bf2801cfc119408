package livemap

import "time"

const DefaultRetention = 60 * time.Second

// TileUpdate records when a tile finished rendering.
type TileUpdate struct {
	Tile TileCoord
	At   time.Time
}

// updateHistory keeps at most one update per tile, in completion order, and
// forgets anything older than retention at the time of the latest insert.
type updateHistory struct {
	retention time.Duration
	updates   []TileUpdate
}

func (h *updateHistory) add(c TileCoord, now time.Time) {
	deadline := now.Add(-h.retention)

	kept := h.updates[:0]
	for _, u := range h.updates {
		if u.At.Before(deadline) || u.Tile == c {
			continue
		}
		kept = append(kept, u)
	}
	clear(h.updates[len(kept):])
	h.updates = append(kept, TileUpdate{Tile: c, At: now})
}

func (h *updateHistory) snapshot() []TileUpdate {
	result := make([]TileUpdate, len(h.updates))
	copy(result, h.updates)
	return result
}

// since returns updates completed strictly after t.
func (h *updateHistory) since(t time.Time) []TileUpdate {
	result := []TileUpdate{}
	for _, u := range h.updates {
		if u.At.After(t) {
			result = append(result, u)
		}
	}
	return result
}
