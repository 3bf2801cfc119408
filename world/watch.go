package world

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Tnze/go-mc/save/region"
	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
)

// Toucher receives block positions whose rendering may have changed.
type Toucher interface {
	Touch(x, y, z int) bool
}

type ChunkPos struct {
	X int
	Z int
}

// chunkStamp is what a scan remembers about a chunk. Timestamps only have
// second resolution, so chunks saved in the second a scan ran also keep a
// checksum of their sector.
type chunkStamp struct {
	timestamp int32
	sum       uint64
	hashed    bool
}

// Watcher polls region file chunk timestamps and turns every chunk whose
// timestamp moved into touches of its surface blocks. A chunk saved again
// within the same second is caught by comparing sector checksums.
type Watcher struct {
	save     *Save
	toucher  Toucher
	interval time.Duration

	stamps map[ChunkPos]chunkStamp
	primed bool
	now    func() time.Time
	log    *logrus.Entry
}

func NewWatcher(save *Save, toucher Toucher, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		save:     save,
		toucher:  toucher,
		interval: interval,
		stamps:   make(map[ChunkPos]chunkStamp),
		now:      time.Now,
		log:      logrus.WithField("component", "watcher"),
	}
}

// Run scans until ctx is cancelled. The first scan only records the current
// timestamps.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		changed, err := w.Scan()
		if err != nil {
			w.log.Warnf("failed to scan regions: %v", err)
		} else if len(changed) > 0 {
			w.log.Debugf("%d chunks changed", len(changed))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Scan compares the region timestamps against the previous scan, touches
// changed chunks and returns them.
func (w *Watcher) Scan() ([]ChunkPos, error) {
	entries, err := os.ReadDir(w.save.RegionPath())
	if err != nil {
		return nil, err
	}

	// a chunk stamped at or after this second may be saved again unseen
	recent := int32(w.now().Unix()) - 1

	var changed []ChunkPos
	for _, e := range entries {
		var rx, rz int
		if _, err := fmt.Sscanf(e.Name(), "r.%d.%d.mca", &rx, &rz); err != nil {
			continue
		}

		reg, err := region.Open(filepath.Join(w.save.RegionPath(), e.Name()))
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			w.log.Warnf("failed to open region file %s: %v", e.Name(), err)
			continue
		}

		for x := 0; x < 32; x++ {
			for z := 0; z < 32; z++ {
				ts := reg.Timestamps[z][x]
				if ts == 0 {
					continue
				}
				pos := ChunkPos{X: rx*32 + x, Z: rz*32 + z}
				read := func() ([]byte, error) {
					return reg.ReadSector(x, z)
				}
				if w.observe(pos, ts, recent, read) && w.primed {
					changed = append(changed, pos)
				}
			}
		}
		reg.Close()
	}
	w.primed = true

	for _, pos := range changed {
		w.save.Invalidate(pos.X, pos.Z)
	}
	// the cache drops entries asynchronously
	w.save.chunks.Wait()

	for _, pos := range changed {
		w.touchChunk(pos)
	}
	return changed, nil
}

// observe records the chunk's timestamp and reports whether the chunk changed
// since the last scan. read is only called for chunks stamped at or after
// recent, or whose previous stamp carries a checksum.
func (w *Watcher) observe(pos ChunkPos, ts, recent int32, read func() ([]byte, error)) bool {
	prev, seen := w.stamps[pos]
	if seen && prev.timestamp == ts && !prev.hashed {
		return false
	}

	stamp := chunkStamp{timestamp: ts}
	if ts >= recent || (seen && prev.timestamp == ts) {
		data, err := read()
		if err != nil {
			w.log.Warnf("failed to read chunk %d, %d: %v", pos.X, pos.Z, err)
			// unreadable mid-write, look again next scan
			delete(w.stamps, pos)
			return seen && prev.timestamp != ts
		}
		stamp.sum = xxhash.Sum64(data)
		stamp.hashed = ts >= recent
	}
	w.stamps[pos] = stamp

	if !seen {
		return true
	}
	if prev.timestamp != ts {
		return true
	}
	return stamp.sum != prev.sum
}

func (w *Watcher) touchChunk(pos ChunkPos) {
	for x := pos.X * 16; x < pos.X*16+16; x++ {
		for z := pos.Z * 16; z < pos.Z*16+16; z++ {
			h := w.save.HeightAt(x, z)
			if h < 1 {
				continue
			}
			w.toucher.Touch(x, h-1, z)
		}
	}
}
