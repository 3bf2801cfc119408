package world

import (
	"math/bits"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/save"
)

var airBlocks = map[string]struct{}{
	"minecraft:air":            {},
	"minecraft:cave_air":       {},
	"minecraft:void_air":       {},
	"minecraft:structure_void": {},
	"minecraft:barrier":        {},
	"minecraft:light":          {},
}

// IsAirBlock reports whether a block name is rendered as empty space.
func IsAirBlock(block string) bool {
	_, ok := airBlocks[block]
	return ok
}

// Materials resolves block names to material ids. Air must never be passed
// in; it is always material 0.
type Materials interface {
	MaterialID(name string) int
}

// chunkData is a decoded chunk reduced to what the renderer and the flood
// fill need: per-section material lookups and the surface heightmap.
type chunkData struct {
	sections []*sectionData
	heights  [16 * 16]int
}

type sectionData struct {
	ids     []int
	storage *level.BitStorage
}

var emptyChunk = &chunkData{}

func decodeChunk(chunk *save.Chunk, materials Materials) *chunkData {
	if len(chunk.Sections) == 0 {
		return emptyChunk
	}

	data := &chunkData{
		sections: make([]*sectionData, len(chunk.Sections)),
	}

	bitsForHeight := bits.Len(uint(len(chunk.Sections))*16 + 1)
	if raw, ok := chunk.Heightmaps["MOTION_BLOCKING"]; ok && len(raw) > 0 {
		motionBlocking := level.NewBitStorage(bitsForHeight, 16*16, raw)
		for i := range data.heights {
			data.heights[i] = motionBlocking.Get(i)
		}
	}

	for index, section := range chunk.Sections {
		if len(section.BlockStates.Palette) == 0 {
			continue
		}

		ids := make([]int, len(section.BlockStates.Palette))
		solid := false
		for i, state := range section.BlockStates.Palette {
			if IsAirBlock(state.Name) {
				continue
			}
			ids[i] = materials.MaterialID(state.Name)
			solid = true
		}
		if !solid {
			continue
		}

		sc := &sectionData{ids: ids}
		if len(ids) > 1 {
			v := calcBitsPerValue(16*16*16, len(section.BlockStates.Data))
			sc.storage = level.NewBitStorage(v, 16*16*16, section.BlockStates.Data)
		}
		data.sections[index] = sc
	}

	return data
}

func (c *chunkData) height(x, z int) int {
	return c.heights[(z&15)*16+(x&15)]
}

func (c *chunkData) block(x, y, z int) int {
	if y < 0 {
		return 0
	}
	index := y >> 4
	if index >= len(c.sections) {
		return 0
	}
	sc := c.sections[index]
	if sc == nil {
		return 0
	}

	if len(sc.ids) == 1 {
		return sc.ids[0]
	}

	blockIndex := ((((y & 15) * 16) + (z & 15)) * 16) + (x & 15)
	paletteIndex := sc.storage.Get(blockIndex)
	if paletteIndex < 0 || paletteIndex >= len(sc.ids) {
		return 0
	}
	return sc.ids[paletteIndex]
}

func calcBitsPerValue(length, longs int) (bits int) {
	if longs == 0 || length == 0 {
		return 0
	}
	valuePerLong := (length + longs - 1) / longs
	return 64 / valuePerLong
}
