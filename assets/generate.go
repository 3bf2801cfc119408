package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"math"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/b1naryth1ef/livemap"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const maxModelDepth = 16

var grassBlocks = map[string]struct{}{
	"minecraft:grass":       {},
	"minecraft:short_grass": {},
	"minecraft:grass_block": {},
	"minecraft:tall_grass":  {},
	"minecraft:vine":        {},
	"minecraft:fern":        {},
	"minecraft:large_fern":  {},
	"minecraft:sugar_cane":  {},
	"minecraft:potted_fern": {},
}

var foliageBlocks = map[string]struct{}{
	"minecraft:oak_leaves":      {},
	"minecraft:jungle_leaves":   {},
	"minecraft:acacia_leaves":   {},
	"minecraft:dark_oak_leaves": {},
	"minecraft:mangrove_leaves": {},
}

// blocks tinted with a constant color instead of a colormap
var fixedTints = map[string]color.RGBA{
	"minecraft:birch_leaves":  {R: 0x80, G: 0xa7, B: 0x55, A: 255},
	"minecraft:spruce_leaves": {R: 0x61, G: 0x99, B: 0x61, A: 255},
	"minecraft:water":         {R: 0x3f, G: 0x76, B: 0xe4, A: 255},
	"minecraft:lily_pad":      {R: 0x20, G: 0x80, B: 0x30, A: 255},
}

type Biome struct {
	Temperature float64 `json:"temperature"`
	Downfall    float64 `json:"downfall"`
}

// Plains is the biome whose colormap tint is used for grass and foliage.
var Plains = Biome{Temperature: 0.8, Downfall: 0.4}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	} else if v > max {
		return max
	}
	return v
}

func (b Biome) ColorMapCoords() (int, int) {
	r := clamp(b.Downfall, 0, 1) * clamp(b.Temperature, 0, 1)
	x := int(math.Ceil(255 - (clamp(b.Temperature, 0, 1) * 255)))
	y := int(math.Ceil(255 - (r * 255)))
	return x, y
}

type GeneratorOpts struct {
	// Skip excludes block names from the output, typically air.
	Skip func(name string) bool

	Biome       Biome
	Concurrency int
}

// Generator derives a colorset from the block textures of a client jar.
type Generator struct {
	opts   GeneratorOpts
	loader *Loader
	log    *logrus.Entry

	grassTint   color.RGBA
	foliageTint color.RGBA

	mu       sync.RWMutex
	models   map[string]modelInfo
	textures map[string]color.RGBA
}

func NewGenerator(loader *Loader, opts GeneratorOpts) *Generator {
	if opts.Biome == (Biome{}) {
		opts.Biome = Plains
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}

	g := &Generator{
		opts:        opts,
		loader:      loader,
		log:         logrus.WithField("component", "colorgen"),
		grassTint:   color.RGBA{R: 0x91, G: 0xbd, B: 0x59, A: 255},
		foliageTint: color.RGBA{R: 0x77, G: 0xab, B: 0x2f, A: 255},
		models:      make(map[string]modelInfo),
		textures:    make(map[string]color.RGBA),
	}
	if tint, err := g.colormapTint("grass"); err == nil {
		g.grassTint = tint
	} else {
		g.log.Warnf("using default grass tint: %v", err)
	}
	if tint, err := g.colormapTint("foliage"); err == nil {
		g.foliageTint = tint
	} else {
		g.log.Warnf("using default foliage tint: %v", err)
	}
	return g
}

func (g *Generator) colormapTint(name string) (color.RGBA, error) {
	img, err := g.loader.LoadPNG(fmt.Sprintf("assets/minecraft/textures/colormap/%s.png", name))
	if err != nil {
		return color.RGBA{}, err
	}
	x, y := g.opts.Biome.ColorMapCoords()
	b := img.Bounds()
	x = b.Min.X + x*b.Dx()/256
	y = b.Min.Y + y*b.Dy()/256
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}, nil
}

// BlockNames lists every block with a blockstate definition, sorted.
func (g *Generator) BlockNames() []string {
	const prefix = "assets/minecraft/blockstates/"
	var names []string
	for name := range g.loader.Files {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, "minecraft:"+strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"))
	}
	sort.Strings(names)
	return names
}

// BlockColor returns the straight alpha color of a block seen from above.
func (g *Generator) BlockColor(name string) (color.RGBA, error) {
	raw, err := g.loader.LoadRaw(fmt.Sprintf("assets/minecraft/blockstates/%s.json", stripNamespace(name)))
	if err != nil {
		return color.RGBA{}, err
	}
	var info blockStateInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return color.RGBA{}, fmt.Errorf("failed to decode blockstate %s: %w", name, err)
	}

	modelName, err := info.defaultModel()
	if err != nil {
		return color.RGBA{}, fmt.Errorf("blockstate %s: %w", name, err)
	}
	textures, err := g.modelTextures(modelName)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("block %s: %w", name, err)
	}
	textureName, err := pickTexture(textures)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("block %s: %w", name, err)
	}
	avg, err := g.textureColor(textureName)
	if err != nil {
		return color.RGBA{}, err
	}

	return g.tint(name, avg), nil
}

func (g *Generator) tint(name string, c color.RGBA) color.RGBA {
	var tint color.RGBA
	if _, ok := grassBlocks[name]; ok {
		tint = g.grassTint
	} else if _, ok := foliageBlocks[name]; ok {
		tint = g.foliageTint
	} else if fixed, ok := fixedTints[name]; ok {
		tint = fixed
	} else {
		return c
	}
	tint.A = c.A
	return tint
}

// modelTextures merges the texture variables of a model and its parents,
// children overriding parents.
func (g *Generator) modelTextures(name string) (map[string]string, error) {
	textures := make(map[string]string)
	for depth := 0; name != ""; depth++ {
		if depth >= maxModelDepth {
			return nil, fmt.Errorf("model %s: parent chain too deep", name)
		}
		info, err := g.model(name)
		if err != nil {
			return nil, err
		}
		for k, v := range info.Textures {
			if _, ok := textures[k]; !ok {
				textures[k] = v
			}
		}
		name = info.Parent
	}
	return textures, nil
}

func (g *Generator) model(name string) (modelInfo, error) {
	name = stripNamespace(name)

	g.mu.RLock()
	info, ok := g.models[name]
	g.mu.RUnlock()
	if ok {
		return info, nil
	}

	// builtin/generated and friends have no file
	if strings.HasPrefix(name, "builtin/") {
		return modelInfo{}, nil
	}

	raw, err := g.loader.LoadRaw(path.Join("assets/minecraft/models", name+".json"))
	if err != nil {
		return modelInfo{}, err
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return modelInfo{}, fmt.Errorf("failed to decode model %s: %w", name, err)
	}

	g.mu.Lock()
	g.models[name] = info
	g.mu.Unlock()
	return info, nil
}

func (g *Generator) textureColor(name string) (color.RGBA, error) {
	g.mu.RLock()
	c, ok := g.textures[name]
	g.mu.RUnlock()
	if ok {
		return c, nil
	}

	img, err := g.loader.LoadPNG(path.Join("assets/minecraft/textures", name+".png"))
	if err != nil {
		return color.RGBA{}, err
	}
	c = averageColor(img)

	g.mu.Lock()
	g.textures[name] = c
	g.mu.Unlock()
	return c, nil
}

// averageColor weights every pixel by its alpha. Animated textures are
// vertical strips of frames, so only the top square is sampled.
func averageColor(texture image.Image) color.RGBA {
	bounds := texture.Bounds()
	if bounds.Dy() > bounds.Dx() {
		bounds.Max.Y = bounds.Min.Y + bounds.Dx()
	}

	var rr, gg, bb, aa, count float64
	for i := bounds.Min.X; i < bounds.Max.X; i++ {
		for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
			// RGBA is premultiplied, so sums are alpha weighted already
			r, g, b, a := texture.At(i, j).RGBA()
			rr += float64(r)
			gg += float64(g)
			bb += float64(b)
			aa += float64(a)
			count++
		}
	}
	if aa == 0 {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(math.Round(rr / aa * 255)),
		G: uint8(math.Round(gg / aa * 255)),
		B: uint8(math.Round(bb / aa * 255)),
		A: uint8(math.Round(aa / count / 0xffff * 255)),
	}
}

// Generate computes colors for every block in the jar. Blocks that cannot
// be resolved are logged and left out; ids are assigned in name order.
func (g *Generator) Generate(ctx context.Context) ([]livemap.ColorEntry, error) {
	names := g.BlockNames()
	colors := make([]color.RGBA, len(names))
	failed := make([]bool, len(names))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(g.opts.Concurrency)
	for i, name := range names {
		if g.opts.Skip != nil && g.opts.Skip(name) {
			failed[i] = true
			continue
		}

		i, name := i, name
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := g.BlockColor(name)
			if err != nil {
				g.log.Debugf("skipping %s: %v", name, err)
				failed[i] = true
				return nil
			}
			colors[i] = c
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	entries := make([]livemap.ColorEntry, 0, len(names))
	skipped := 0
	for i, name := range names {
		if failed[i] || colors[i].A == 0 {
			skipped++
			continue
		}
		c := colors[i]
		entries = append(entries, livemap.ColorEntry{
			ID:    len(entries) + 1,
			Name:  name,
			Faces: livemap.ShadedFaces(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}, c.A),
		})
	}
	g.log.Infof("generated colors for %d blocks (%d skipped)", len(entries), skipped)
	return entries, nil
}
