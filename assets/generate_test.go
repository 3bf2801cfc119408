package assets

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func solidPNG(t *testing.T, w, h int, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uniform(c color.Color) func(x, y int) color.Color {
	return func(x, y int) color.Color { return c }
}

func testJar(t *testing.T) *Loader {
	t.Helper()

	files := make(map[string][]byte)
	add := func(name string, data []byte) {
		files[name] = data
	}

	add("assets/minecraft/blockstates/stone.json", []byte(`{"variants": {"": {"model": "minecraft:block/stone"}}}`))
	add("assets/minecraft/models/block/stone.json", []byte(`{"parent": "minecraft:block/cube_all", "textures": {"all": "minecraft:block/stone"}}`))
	add("assets/minecraft/models/block/cube_all.json", []byte(`{"parent": "block/cube", "textures": {"particle": "#all"}}`))
	add("assets/minecraft/models/block/cube.json", []byte(`{"parent": "block/block"}`))
	add("assets/minecraft/models/block/block.json", []byte(`{}`))
	add("assets/minecraft/textures/block/stone.png", solidPNG(t, 4, 4, uniform(color.NRGBA{R: 120, G: 120, B: 120, A: 255})))
	add("assets/minecraft/blockstates/glass.json", []byte(`{"variants": {"": [{"model": "block/glass"}, {"model": "block/glass_alt"}]}}`))
	add("assets/minecraft/models/block/glass.json", []byte(`{"textures": {"all": "block/glass"}}`))
	add("assets/minecraft/blockstates/grass_block.json", []byte(`{"variants": {"snowy=true": {"model": "block/snowy"}, "snowy=false": {"model": "block/grass_block"}}}`))
	add("assets/minecraft/models/block/grass_block.json", []byte(`{"textures": {"top": "block/grass_block_top", "side": "block/dirt"}}`))
	add("assets/minecraft/textures/block/grass_block_top.png", solidPNG(t, 2, 2, uniform(color.NRGBA{R: 150, G: 150, B: 150, A: 255})))
	add("assets/minecraft/textures/colormap/grass.png", solidPNG(t, 256, 256, uniform(color.NRGBA{R: 10, G: 200, B: 20, A: 255})))
	add("assets/minecraft/blockstates/oak_fence.json", []byte(`{"multipart": [{"when": {"north": "true"}, "apply": {"model": "block/fence_side"}}, {"apply": {"model": "block/fence_post"}}]}`))
	add("assets/minecraft/models/block/fence_post.json", []byte(`{"textures": {"texture": "block/planks"}}`))
	add("assets/minecraft/textures/block/planks.png", solidPNG(t, 2, 2, uniform(color.NRGBA{R: 160, G: 120, B: 60, A: 255})))
	add("assets/minecraft/blockstates/air.json", []byte(`{"variants": {"": {"model": "block/air"}}}`))
	add("assets/minecraft/models/block/air.json", []byte(`{"textures": {"particle": "block/barrier"}}`))
	add("assets/minecraft/blockstates/broken.json", []byte(`{"variants": {"": {"model": "block/missing"}}}`))
	add("data/minecraft/ignored.json", []byte(`{}`))

	// half transparent glass
	add("assets/minecraft/textures/block/glass.png", solidPNG(t, 2, 2, func(x, y int) color.Color {
		if x == 0 {
			return color.NRGBA{R: 200, G: 220, B: 255, A: 255}
		}
		return color.NRGBA{}
	}))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("failed to open jar: %v", err)
	}
	return loader
}

func TestLoaderOnlyKeepsAssets(t *testing.T) {
	loader := testJar(t)
	if _, ok := loader.Files["data/minecraft/ignored.json"]; ok {
		t.Fatalf("expected non asset files to be ignored")
	}
	if _, err := loader.LoadRaw("assets/minecraft/missing.json"); err == nil {
		t.Fatalf("expected missing file to fail")
	}
	if err := loader.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestBlockNames(t *testing.T) {
	g := NewGenerator(testJar(t), GeneratorOpts{})
	want := []string{
		"minecraft:air",
		"minecraft:broken",
		"minecraft:glass",
		"minecraft:grass_block",
		"minecraft:oak_fence",
		"minecraft:stone",
	}
	if diff := cmp.Diff(want, g.BlockNames()); diff != "" {
		t.Fatalf("unexpected block names (-want +got):\n%s", diff)
	}
}

func TestBlockColor(t *testing.T) {
	g := NewGenerator(testJar(t), GeneratorOpts{})

	cases := map[string]color.RGBA{
		"minecraft:stone":       {R: 120, G: 120, B: 120, A: 255},
		"minecraft:grass_block": {R: 10, G: 200, B: 20, A: 255},
		"minecraft:oak_fence":   {R: 160, G: 120, B: 60, A: 255},
	}
	for name, want := range cases {
		got, err := g.BlockColor(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: got %v, expected %v", name, got, want)
		}
	}

	glass, err := g.BlockColor("minecraft:glass")
	if err != nil {
		t.Fatal(err)
	}
	if glass.R != 200 || glass.G != 220 || glass.B != 255 {
		t.Fatalf("expected transparent pixels not to dilute the color, got %v", glass)
	}
	if glass.A < 127 || glass.A > 128 {
		t.Fatalf("expected half alpha, got %d", glass.A)
	}

	if _, err := g.BlockColor("minecraft:broken"); err == nil {
		t.Fatalf("expected missing model to fail")
	}
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(testJar(t), GeneratorOpts{
		Skip: func(name string) bool { return name == "minecraft:air" },
	})

	entries, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("failed to generate: %v", err)
	}

	var names []string
	for i, e := range entries {
		if e.ID != i+1 {
			t.Fatalf("expected sequential ids, got %d at %d", e.ID, i)
		}
		names = append(names, e.Name)
	}
	want := []string{"minecraft:glass", "minecraft:grass_block", "minecraft:oak_fence", "minecraft:stone"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}

	stone := entries[3].Faces
	if stone[0] != (color.RGBA{R: 120, G: 120, B: 120, A: 255}) {
		t.Fatalf("expected top face to keep the texture color, got %v", stone[0])
	}
}

func TestGenerateCancelled(t *testing.T) {
	g := NewGenerator(testJar(t), GeneratorOpts{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx); err == nil {
		t.Fatalf("expected cancelled generation to fail")
	}
}

func TestPickTexture(t *testing.T) {
	cases := []struct {
		textures map[string]string
		want     string
	}{
		{map[string]string{"particle": "block/a"}, "block/a"},
		{map[string]string{"side": "block/s", "top": "minecraft:block/t"}, "block/t"},
		{map[string]string{"particle": "#all", "all": "block/x"}, "block/x"},
		{map[string]string{"b": "block/b", "a": "block/a"}, "block/a"},
	}
	for _, c := range cases {
		got, err := pickTexture(c.textures)
		if err != nil {
			t.Fatalf("%v: %v", c.textures, err)
		}
		if got != c.want {
			t.Fatalf("%v: got %s, expected %s", c.textures, got, c.want)
		}
	}

	if _, err := pickTexture(map[string]string{"a": "#b", "b": "#a"}); err == nil {
		t.Fatalf("expected reference loop to fail")
	}
	if _, err := pickTexture(nil); err == nil {
		t.Fatalf("expected empty textures to fail")
	}
}

func TestColorMapCoords(t *testing.T) {
	x, y := Plains.ColorMapCoords()
	if x != 51 || y != 174 {
		t.Fatalf("unexpected plains coords (%d, %d)", x, y)
	}
}
