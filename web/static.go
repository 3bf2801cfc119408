package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var indexHTML string

//go:embed js/*
var staticContent embed.FS

func GetIndexHTML() string {
	return indexHTML
}

// GetStaticContent returns the embedded assets; "js/map.js" is served as
// /static/js/map.js.
func GetStaticContent() fs.FS {
	return staticContent
}
