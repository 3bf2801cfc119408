package world

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestSave(t *testing.T) *Save {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "region"), 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir, materialMap{}, SaveOpts{CachedChunks: 16})
	if err != nil {
		t.Fatalf("failed to open save: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestOpenRequiresRegionDirectory(t *testing.T) {
	if _, err := Open(t.TempDir(), materialMap{}, SaveOpts{}); err == nil {
		t.Fatalf("expected error for world without region directory")
	}
}

func TestMissingRegionsAreEmpty(t *testing.T) {
	s := newTestSave(t)
	if h := s.HeightAt(1000, -1000); h != 0 {
		t.Fatalf("expected height 0, got %d", h)
	}
	if id := s.BlockAt(1000, 64, -1000); id != 0 {
		t.Fatalf("expected air, got %d", id)
	}
}

func TestMissingSpawn(t *testing.T) {
	s := newTestSave(t)
	if _, _, _, err := s.Spawn(); err == nil {
		t.Fatalf("expected error without level.dat")
	}
}

func TestChunkKeyIsUnique(t *testing.T) {
	seen := make(map[uint64]ChunkPos)
	for cx := -3; cx <= 3; cx++ {
		for cz := -3; cz <= 3; cz++ {
			key := chunkKey(cx, cz)
			if prev, ok := seen[key]; ok {
				t.Fatalf("chunk (%d, %d) collides with %v", cx, cz, prev)
			}
			seen[key] = ChunkPos{X: cx, Z: cz}
		}
	}
}

func TestInvalidateDropsCachedChunk(t *testing.T) {
	s := newTestSave(t)

	data := &chunkData{}
	data.heights[0] = 70
	s.chunks.Set(chunkKey(2, 3), data, 1)
	s.chunks.Wait()

	if h := s.HeightAt(32, 48); h != 70 {
		t.Fatalf("expected cached height 70, got %d", h)
	}

	s.Invalidate(2, 3)
	s.chunks.Wait()
	if h := s.HeightAt(32, 48); h != 0 {
		t.Fatalf("expected reload after invalidate, got %d", h)
	}
}
