// Package web embeds the browser UI served by the game server.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var content embed.FS

// IndexFile is the entry document served for any unmatched route
const IndexFile = "index.html"

// FS returns the UI bundle rooted at the static directory
func FS() fs.FS {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
