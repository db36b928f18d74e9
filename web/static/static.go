package static

import (
	"embed"
	"html/template"
	"path/filepath"
)

//go:embed index.html playbackStyle.css
var files embed.FS

// Index renders models.IndexPage.
var Index = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"base": filepath.Base,
}).ParseFS(files, "index.html"))

// Stylesheet returns the embedded playback page stylesheet.
func Stylesheet() ([]byte, error) {
	return files.ReadFile("playbackStyle.css")
}
