// Package web holds the browser client compiled into the server binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html admin.html assets
var files embed.FS

// FS returns the client files rooted at index.html.
func FS() fs.FS {
	return files
}
