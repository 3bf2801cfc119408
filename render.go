package livemap

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// TileRenderer produces the image for a single tile.
type TileRenderer interface {
	RenderTile(ctx context.Context, tile TileCoord) error
}

// TileRendererFunc adapts a function to the TileRenderer interface.
type TileRendererFunc func(ctx context.Context, tile TileCoord) error

func (f TileRendererFunc) RenderTile(ctx context.Context, tile TileCoord) error {
	return f(ctx, tile)
}

// BlockSource answers the material id at a world position, 0 being air.
type BlockSource interface {
	BlockAt(x, y, z int) int
}

type IsoRendererOpts struct {
	Path    string
	Anchor  Anchor
	Top     int
	Bottom  int
	Shading bool
}

// IsoRenderer renders tiles by casting a ray through the world for every
// pixel along the projection's view direction.
type IsoRenderer struct {
	opts   IsoRendererOpts
	blocks BlockSource
	colors *ColorTable
	log    *logrus.Entry
}

func NewIsoRenderer(opts IsoRendererOpts, blocks BlockSource, colors *ColorTable) *IsoRenderer {
	return &IsoRenderer{
		opts:   opts,
		blocks: blocks,
		colors: colors,
		log:    logrus.WithField("component", "renderer"),
	}
}

// TilePath returns where the image for c is written.
func (r *IsoRenderer) TilePath(c TileCoord) string {
	return filepath.Join(r.opts.Path, c.Name()+".png")
}

func (r *IsoRenderer) RenderTile(ctx context.Context, c TileCoord) error {
	img, err := r.renderImage(ctx, c)
	if err != nil {
		return err
	}

	return writeFileAtomic(r.TilePath(c), func(w io.Writer) error {
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("failed to encode tile png %s: %w", c.Name(), err)
		}
		return nil
	})
}

func (r *IsoRenderer) renderImage(ctx context.Context, c TileCoord) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, TileWidth, TileHeight))

	// hit heights include a one pixel border above and left of the tile
	stride := TileWidth + 1
	heights := make([]int, stride*(TileHeight+1))

	for j := -1; j < TileHeight; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := -1; i < TileWidth; i++ {
			clr, h := r.cast(c.X+i, c.Y+j)
			heights[(j+1)*stride+(i+1)] = h
			if i >= 0 && j >= 0 {
				img.SetRGBA(i, j, clr)
			}
		}
	}

	if !r.opts.Shading {
		return img, nil
	}

	for j := 0; j < TileHeight; j++ {
		for i := 0; i < TileWidth; i++ {
			clr := img.RGBAAt(i, j)
			if clr.A == 0 {
				continue
			}

			height := heights[(j+1)*stride+(i+1)]
			topHeight := heights[j*stride+(i+1)]
			leftHeight := heights[(j+1)*stride+i]

			var d int
			if topHeight > height {
				d = (topHeight - height) * 16
			}
			if leftHeight > height {
				d += (leftHeight - height) * 16
			}
			if d > 64 {
				d = 64
			}
			img.SetRGBA(i, j, darken(clr, d))
		}
	}

	return img, nil
}

// cast walks the view ray through projection point (px, py) from the top of
// the world down. Each step enters a new block; the step's sequence number
// selects which face color is visible. It returns the composited color and
// the height of the first solid block hit.
func (r *IsoRenderer) cast(px, py int) (color.RGBA, int) {
	a := r.opts.Anchor
	dy := r.opts.Top - a.Y
	if (px+py+dy)&1 != 0 {
		dy--
	}
	dx := (px + py + dy) / 2
	dz := px - dx

	x, y, z := a.X+dx, a.Y+dy, a.Z+dz

	var cr, cg, cb, ca float64
	hit := r.opts.Bottom - 1

	for y > r.opts.Bottom && ca < 0.99 {
		for seq := 0; seq < 4 && ca < 0.99; seq++ {
			switch seq {
			case 0, 2:
				y--
			case 1:
				x--
			case 3:
				z++
			}

			id := r.blocks.BlockAt(x, y, z)
			if id == 0 {
				continue
			}
			faces, ok := r.colors.Colors(id)
			if !ok {
				continue
			}
			clr := faces[seq]
			if clr.A == 0 {
				continue
			}
			if hit < r.opts.Bottom {
				hit = y
			}

			w := (1 - ca) * float64(clr.A) / 255
			cr += w * float64(clr.R) / 255
			cg += w * float64(clr.G) / 255
			cb += w * float64(clr.B) / 255
			ca += w
		}
	}

	// image.RGBA stores premultiplied alpha, which is what we accumulated
	return color.RGBA{
		R: uint8(cr * 255),
		G: uint8(cg * 255),
		B: uint8(cb * 255),
		A: uint8(ca * 255),
	}, hit
}

func darken(c color.RGBA, d int) color.RGBA {
	f := 255 - d
	return color.RGBA{
		R: uint8(int(c.R) * f / 255),
		G: uint8(int(c.G) * f / 255),
		B: uint8(int(c.B) * f / 255),
		A: c.A,
	}
}

// EnsureTileDirectory creates the tile output directory if needed.
func EnsureTileDirectory(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create tile directory %s: %w", path, err)
	}
	return nil
}
