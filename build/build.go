package build

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/b1naryth1ef/livemap"
	"github.com/b1naryth1ef/livemap/web"
	"github.com/sirupsen/logrus"
)

type BuildOpts struct {
	// Start is the world position the flood fill begins at; nil uses spawn.
	Start *[3]int

	// StaticPath, when set, receives index.html and the frontend assets.
	StaticPath string
}

func ensureDirectory(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func writeDirectory(path string, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			err = os.Mkdir(filepath.Join(path, entry.Name()), os.ModePerm)
			if err != nil && !os.IsExist(err) {
				return err
			}
			err = writeDirectory(filepath.Join(path, entry.Name()), fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
			if err != nil {
				return err
			}
		} else {
			contents, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
			if err != nil {
				return err
			}

			err = os.WriteFile(filepath.Join(path, entry.Name()), contents, os.ModePerm)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func writeStatic(path string, data web.FrontendData) error {
	err := ensureDirectory(path)
	if err != nil {
		return err
	}

	fd, err := os.Create(filepath.Join(path, "index.html"))
	if err != nil {
		return err
	}
	defer fd.Close()

	dataSerialized, err := json.Marshal(data)
	if err != nil {
		return err
	}

	tmpl := template.Must(template.New("index.html").Parse(web.GetIndexHTML()))
	err = tmpl.Execute(fd, string(dataSerialized))
	if err != nil {
		return err
	}

	err = ensureDirectory(filepath.Join(path, "static"))
	if err != nil {
		return err
	}

	return writeDirectory(filepath.Join(path, "static"), web.GetStaticContent(), ".")
}

// Build renders every reachable tile once: it flood-fills from the start
// point, runs the worker until the queue drains and then stops it.
func Build(ctx context.Context, rt *Runtime, opts BuildOpts) error {
	log := logrus.WithField("component", "build")

	start, err := rt.StartPoint(opts.Start)
	if err != nil {
		return err
	}

	began := time.Now()
	queued := rt.Manager.Regenerate(start[0], start[1], start[2])
	log.Infof("regenerating from (%d, %d, %d): %d tiles queued", start[0], start[1], start[2], queued)

	if err := rt.Manager.Start(); err != nil {
		return err
	}
	err = rt.Manager.WaitDrained(ctx, 250*time.Millisecond)
	rt.Manager.Stop()
	if err != nil {
		return err
	}

	log.Infof("finished rendering in %dms (%d tiles)", time.Since(began).Milliseconds(), queued)

	if opts.StaticPath == "" {
		return nil
	}

	warps, err := livemap.LoadWarps(rt.Config.WarpsPath)
	if err != nil {
		return err
	}
	return writeStatic(opts.StaticPath, web.FrontendData{
		TileWidth:      livemap.TileWidth,
		TileHeight:     livemap.TileHeight,
		UpdateInterval: 1000,
		Markers:        rt.Markers.List(),
		Warps:          warps,
	})
}
