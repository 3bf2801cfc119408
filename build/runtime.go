package build

import (
	"fmt"

	"github.com/b1naryth1ef/livemap"
	"github.com/b1naryth1ef/livemap/world"
	"github.com/sirupsen/logrus"
)

// Runtime is everything needed to keep a map up to date. Open builds it in
// dependency order and fails before any worker is started.
type Runtime struct {
	Config   *livemap.Config
	Colors   *livemap.ColorTable
	Save     *world.Save
	Renderer *livemap.IsoRenderer
	Manager  *livemap.Manager
	Markers  *livemap.MarkerStore
}

func Open(config *livemap.Config, notifier livemap.Notifier) (*Runtime, error) {
	log := logrus.WithField("component", "build")

	if err := livemap.EnsureTileDirectory(config.TilePath); err != nil {
		return nil, err
	}

	colors, err := livemap.LoadColorTable(config.ColorsPath)
	if err != nil {
		return nil, err
	}
	log.Infof("%d colors loaded from %s", colors.Len(), config.ColorsPath)

	markers, err := livemap.LoadMarkers(config.MarkersPath, notifier)
	if err != nil {
		return nil, err
	}

	save, err := world.Open(config.World, colors, world.SaveOpts{
		CachedChunks: config.CachedChunks,
	})
	if err != nil {
		return nil, err
	}

	renderer := livemap.NewIsoRenderer(livemap.IsoRendererOpts{
		Path:    config.TilePath,
		Anchor:  *config.Anchor,
		Top:     config.WorldHeight,
		Bottom:  0,
		Shading: *config.Shading,
	}, save, colors)

	manager := livemap.NewManager(config.ManagerOpts(notifier), renderer, save)

	return &Runtime{
		Config:   config,
		Colors:   colors,
		Save:     save,
		Renderer: renderer,
		Manager:  manager,
		Markers:  markers,
	}, nil
}

// StartPoint returns the given point, or the world spawn when it is nil.
func (r *Runtime) StartPoint(point *[3]int) ([3]int, error) {
	if point != nil {
		return *point, nil
	}
	x, _, z, err := r.Save.Spawn()
	if err != nil {
		return [3]int{}, fmt.Errorf("failed to read world spawn: %w", err)
	}
	y := r.Save.HeightAt(x, z) - 1
	if y < 0 {
		y = 0
	}
	return [3]int{x, y, z}, nil
}

func (r *Runtime) Close() {
	r.Manager.Stop()
	r.Save.Close()
}
