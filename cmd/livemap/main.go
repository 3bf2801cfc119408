package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/b1naryth1ef/livemap"
	"github.com/b1naryth1ef/livemap/build"
	"github.com/b1naryth1ef/livemap/web"
	"github.com/b1naryth1ef/livemap/world"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	configFlag := &cli.PathFlag{
		Name:  "config",
		Usage: "path to the configuration file",
		Value: "config.hcl",
	}

	app := &cli.App{
		Name:        "livemap",
		Description: "live isometric map renderer for voxel worlds",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "keep the map up to date and serve it over http",
				Action: commandServe,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "build",
				Usage:  "render every reachable tile once and exit",
				Action: commandBuild,
				Flags: []cli.Flag{
					configFlag,
					&cli.IntSliceFlag{
						Name:  "start",
						Usage: "world position x,y,z to flood fill from (defaults to spawn)",
					},
					&cli.PathFlag{
						Name:  "static",
						Usage: "directory to write the static frontend into",
					},
				},
			},
			{
				Name:  "marker",
				Usage: "manage map markers",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						ArgsUsage: "<name> <x> <y> <z>",
						Action:    commandMarkerAdd,
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{Name: "owner", Required: true},
						},
					},
					{
						Name:      "remove",
						ArgsUsage: "<name>",
						Action:    commandMarkerRemove,
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{Name: "owner", Required: true},
						},
					},
					{
						Name:   "list",
						Action: commandMarkerList,
						Flags:  []cli.Flag{configFlag},
					},
				},
			},
			colorsCommand,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (*livemap.Config, error) {
	config, err := livemap.LoadConfig(ctx.Path("config"))
	if err != nil {
		return nil, err
	}
	if err := livemap.ConfigureLogging(config.Log); err != nil {
		return nil, err
	}
	return config, nil
}

func commandServe(ctx *cli.Context) error {
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	rt, err := build.Open(config, livemap.LogNotifier{})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := web.NewServer(web.ServerOpts{
		TilePath:  config.TilePath,
		WarpsPath: config.WarpsPath,
	}, rt.Manager, rt.Markers)
	if err != nil {
		return err
	}

	if err := rt.Manager.Start(); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return world.NewWatcher(rt.Save, rt.Manager, config.WatchDuration()).Run(groupCtx)
	})
	group.Go(func() error {
		return server.Run(groupCtx, config.Listen)
	})

	err = group.Wait()
	logrus.Info("shutting down")
	return err
}

func commandBuild(ctx *cli.Context) error {
	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	opts := build.BuildOpts{
		StaticPath: ctx.Path("static"),
	}
	if start := ctx.IntSlice("start"); len(start) > 0 {
		if len(start) != 3 {
			return fmt.Errorf("--start expects x,y,z")
		}
		opts.Start = &[3]int{start[0], start[1], start[2]}
	}

	rt, err := build.Open(config, livemap.LogNotifier{})
	if err != nil {
		return err
	}
	defer rt.Close()

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return build.Build(runCtx, rt, opts)
}

func openMarkers(ctx *cli.Context) (*livemap.MarkerStore, error) {
	config, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return livemap.LoadMarkers(config.MarkersPath, livemap.LogNotifier{})
}

func commandMarkerAdd(ctx *cli.Context) error {
	if ctx.NArg() != 4 {
		return fmt.Errorf("usage: marker add <name> <x> <y> <z>")
	}
	var coords [3]float64
	for i := range coords {
		if _, err := fmt.Sscan(ctx.Args().Get(i+1), &coords[i]); err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", ctx.Args().Get(i+1), err)
		}
	}

	markers, err := openMarkers(ctx)
	if err != nil {
		return err
	}
	return markers.Add(ctx.String("owner"), ctx.Args().Get(0), coords[0], coords[1], coords[2])
}

func commandMarkerRemove(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: marker remove <name>")
	}

	markers, err := openMarkers(ctx)
	if err != nil {
		return err
	}
	return markers.Remove(ctx.String("owner"), ctx.Args().Get(0))
}

func commandMarkerList(ctx *cli.Context) error {
	markers, err := openMarkers(ctx)
	if err != nil {
		return err
	}
	for _, m := range markers.List() {
		fmt.Printf("%s\t%s\t%g\t%g\t%g\n", m.Name, m.Owner, m.X, m.Y, m.Z)
	}
	return nil
}
