package livemap

// staleQueue is the FIFO of tiles waiting for a render. A tile's dirty flag
// is its membership marker, so a tile can never be queued twice.
type staleQueue struct {
	items []*Tile
	head  int
}

func (q *staleQueue) push(t *Tile) bool {
	if t.dirty {
		return false
	}
	t.dirty = true
	q.items = append(q.items, t)
	return true
}

func (q *staleQueue) pop() *Tile {
	if q.head >= len(q.items) {
		return nil
	}
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// compact once the consumed prefix dominates the backing array
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	t.dirty = false
	return t
}

func (q *staleQueue) len() int {
	return len(q.items) - q.head
}
