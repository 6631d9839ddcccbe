// Package frontend embeds the dashboard page served at the root path.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// Assets is the dashboard file tree, rooted at index.html.
func Assets() fs.FS {
	root, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return root
}

// Handler serves Assets with revalidation on every load.
func Handler() http.Handler {
	files := http.FileServer(http.FS(Assets()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}
