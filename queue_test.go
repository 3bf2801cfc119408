package livemap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestQueuePushIsIdempotent(t *testing.T) {
	m := newTestManager(nil, nil)
	c := TileCoord{X: 128, Y: -256}

	if !m.PushStale(c) {
		t.Fatalf("expected first push to mark tile stale")
	}
	if m.PushStale(c) {
		t.Fatalf("expected second push to be a no-op")
	}
	if got := m.StaleCount(); got != 1 {
		t.Fatalf("expected 1 stale tile, got %d", got)
	}
}

func TestQueueFIFO(t *testing.T) {
	m := newTestManager(nil, nil)
	order := []TileCoord{{X: 0, Y: 0}, {X: 128, Y: 0}, {X: -128, Y: 128}, {X: 0, Y: -384}}
	for _, c := range order {
		m.PushStale(c)
	}
	// re-pushing does not move a tile
	m.PushStale(order[0])

	if diff := cmp.Diff(order, drain(m)); diff != "" {
		t.Fatalf("unexpected pop order (-want +got):\n%s", diff)
	}
	if got := m.StaleCount(); got != 0 {
		t.Fatalf("expected empty queue, got %d", got)
	}
}

func TestQueuePopClearsDirty(t *testing.T) {
	m := newTestManager(nil, nil)
	c := TileCoord{}
	m.PushStale(c)

	tile := m.popStale()
	if tile == nil || tile.Coord != c {
		t.Fatalf("expected to pop %v, got %v", c, tile)
	}
	if tile.dirty {
		t.Fatalf("expected popped tile to be clean")
	}
	if m.popStale() != nil {
		t.Fatalf("expected empty queue")
	}
	if !m.PushStale(c) {
		t.Fatalf("expected popped tile to be pushable again")
	}
}

func TestQueueCompaction(t *testing.T) {
	var q staleQueue
	tiles := make([]*Tile, 500)
	for i := range tiles {
		tiles[i] = &Tile{Coord: TileCoord{X: i * TileWidth}}
		q.push(tiles[i])
	}

	for i := 0; i < 400; i++ {
		if got := q.pop(); got != tiles[i] {
			t.Fatalf("pop %d returned %v", i, got.Coord)
		}
		if i == 200 {
			q.push(tiles[0])
		}
	}
	if q.len() != 101 {
		t.Fatalf("expected 101 queued tiles, got %d", q.len())
	}
	for i := 400; i < 500; i++ {
		if got := q.pop(); got != tiles[i] {
			t.Fatalf("pop %d returned %v", i, got.Coord)
		}
	}
	if got := q.pop(); got != tiles[0] {
		t.Fatalf("expected re-pushed tile last")
	}
	if q.pop() != nil {
		t.Fatalf("expected empty queue")
	}
}

func TestTileStoreReusesRecords(t *testing.T) {
	m := newTestManager(nil, nil)
	c := TileCoord{X: 256, Y: 128}

	m.Lock()
	first := m.tile(c)
	second := m.tile(c)
	m.Unlock()

	if first != second {
		t.Fatalf("expected the same record for %v", c)
	}
	if got := m.TileCount(); got != 1 {
		t.Fatalf("expected 1 tile record, got %d", got)
	}
}
