package main

import (
	"fmt"
	"os"

	"github.com/b1naryth1ef/livemap"
	"github.com/b1naryth1ef/livemap/assets"
	"github.com/b1naryth1ef/livemap/world"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var colorsCommand = &cli.Command{
	Name:   "colors",
	Usage:  "generate a colorset from the block textures of a client jar",
	Action: commandColors,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:  "jar",
			Usage: "client jar to read textures from; downloaded when unset",
		},
		&cli.StringFlag{
			Name:  "version",
			Usage: "version to download (defaults to the latest release)",
		},
		&cli.PathFlag{
			Name:  "out",
			Usage: "colorset file to write",
			Value: "colors.txt",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "number of blocks resolved in parallel",
		},
	},
}

func openClientJAR(ctx *cli.Context) (*assets.Loader, error) {
	if path := ctx.Path("jar"); path != "" {
		return assets.OpenClientJAR(path)
	}

	fd, err := os.CreateTemp("", "livemap-client-*.jar")
	if err != nil {
		return nil, err
	}
	defer os.Remove(fd.Name())
	defer fd.Close()

	version, err := assets.NewDownloader().ClientJAR(ctx.Context, ctx.String("version"), fd)
	if err != nil {
		return nil, fmt.Errorf("failed to download client jar: %w", err)
	}
	logrus.Infof("downloaded client jar for %s", version.ID)

	// the zip reader keeps its own handle, the temp file may go away
	return assets.OpenClientJAR(fd.Name())
}

func commandColors(ctx *cli.Context) error {
	loader, err := openClientJAR(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()

	generator := assets.NewGenerator(loader, assets.GeneratorOpts{
		Skip:        world.IsAirBlock,
		Concurrency: ctx.Int("concurrency"),
	})
	entries, err := generator.Generate(ctx.Context)
	if err != nil {
		return err
	}

	out, err := os.Create(ctx.Path("out"))
	if err != nil {
		return err
	}
	if err := livemap.WriteColorTable(out, entries); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	logrus.Infof("wrote %d colors to %s", len(entries), ctx.Path("out"))
	return nil
}
