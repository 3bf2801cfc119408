package assets

import (
	"archive/zip"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
)

// Loader reads resources out of a client jar.
type Loader struct {
	Files map[string]*zip.File

	closer io.Closer
}

func OpenClientJAR(path string) (*Loader, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open client jar %s: %w", path, err)
	}
	loader := newLoader(&r.Reader)
	loader.closer = r
	return loader, nil
}

// NewLoader reads a jar held in r.
func NewLoader(r io.ReaderAt, size int64) (*Loader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return newLoader(zr), nil
}

func newLoader(r *zip.Reader) *Loader {
	files := make(map[string]*zip.File)
	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, "assets/") {
			continue
		}
		files[f.Name] = f
	}
	return &Loader{Files: files}
}

func (l *Loader) open(name string) (io.ReadCloser, error) {
	file, ok := l.Files[name]
	if !ok {
		return nil, fmt.Errorf("file %s does not exist", name)
	}
	return file.Open()
}

func (l *Loader) LoadPNG(name string) (image.Image, error) {
	fd, err := l.open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	img, err := png.Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return img, nil
}

func (l *Loader) LoadRaw(name string) ([]byte, error) {
	fd, err := l.open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	return io.ReadAll(fd)
}

func (l *Loader) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
