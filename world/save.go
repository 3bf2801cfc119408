package world

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/save"
	"github.com/Tnze/go-mc/save/region"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"
)

const DefaultCachedChunks = 4096

type SaveOpts struct {
	// CachedChunks bounds how many decoded chunks are held in memory.
	CachedChunks int64
}

// Save reads block and height data from an Anvil world directory. Decoded
// chunks are cached until Invalidate is called for them.
type Save struct {
	path      string
	materials Materials
	chunks    *ristretto.Cache[uint64, *chunkData]
	log       *logrus.Entry
}

func Open(path string, materials Materials, opts SaveOpts) (*Save, error) {
	regionPath := filepath.Join(path, "region")
	if _, err := os.Stat(regionPath); err != nil {
		return nil, fmt.Errorf("failed to open world %s: %w", path, err)
	}

	maxCost := opts.CachedChunks
	if maxCost <= 0 {
		maxCost = DefaultCachedChunks
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *chunkData]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	return &Save{
		path:      path,
		materials: materials,
		chunks:    cache,
		log:       logrus.WithField("component", "world"),
	}, nil
}

func (s *Save) Close() {
	s.chunks.Close()
}

func (s *Save) RegionPath() string {
	return filepath.Join(s.path, "region")
}

// Spawn returns the world spawn point from level.dat.
func (s *Save) Spawn() (int, int, int, error) {
	fd, err := os.Open(filepath.Join(s.path, "level.dat"))
	if err != nil {
		return 0, 0, 0, err
	}
	defer fd.Close()

	r, err := gzip.NewReader(fd)
	if err != nil {
		return 0, 0, 0, err
	}

	level, err := save.ReadLevel(r)
	if err != nil {
		return 0, 0, 0, err
	}

	return int(level.Data.SpawnX), int(level.Data.SpawnY), int(level.Data.SpawnZ), nil
}

// HeightAt returns the motion blocking height of a column, 0 for columns in
// chunks that have not been generated.
func (s *Save) HeightAt(x, z int) int {
	return s.chunk(x>>4, z>>4).height(x, z)
}

// BlockAt returns the material id at a position, 0 for air or unknown.
func (s *Save) BlockAt(x, y, z int) int {
	return s.chunk(x>>4, z>>4).block(x, y, z)
}

// Invalidate drops the cached copy of a chunk so the next read reloads it.
func (s *Save) Invalidate(cx, cz int) {
	s.chunks.Del(chunkKey(cx, cz))
}

func chunkKey(cx, cz int) uint64 {
	return uint64(uint32(int32(cx)))<<32 | uint64(uint32(int32(cz)))
}

func (s *Save) chunk(cx, cz int) *chunkData {
	key := chunkKey(cx, cz)
	if data, ok := s.chunks.Get(key); ok {
		return data
	}

	data, err := s.loadChunk(cx, cz)
	if err != nil {
		s.log.Warnf("failed to load chunk (%d, %d): %v", cx, cz, err)
		data = emptyChunk
	}
	s.chunks.Set(key, data, 1)
	return data
}

func (s *Save) loadChunk(cx, cz int) (*chunkData, error) {
	rx, rz := cx>>5, cz>>5
	reg, err := region.Open(filepath.Join(s.RegionPath(), fmt.Sprintf("r.%d.%d.mca", rx, rz)))
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, io.EOF) {
		return emptyChunk, nil
	}
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	sector, err := reg.ReadSector(cx&31, cz&31)
	if errors.Is(err, region.ErrNoSector) {
		return emptyChunk, nil
	}
	if err != nil {
		return nil, err
	}
	if len(sector) == 0 {
		return nil, fmt.Errorf("sector is out of bounds")
	}

	var chunk save.Chunk
	if err := chunk.Load(sector); err != nil {
		return nil, err
	}

	if chunk.Status != "minecraft:full" &&
		chunk.Status != "minecraft:spawn" &&
		chunk.Status != "minecraft:postprocessed" &&
		chunk.Status != "minecraft:fullchunk" &&
		chunk.Status != "full" {
		return emptyChunk, nil
	}

	return decodeChunk(&chunk, s.materials), nil
}
