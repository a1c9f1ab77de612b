package api

import (
	"net/http"
	"os"
	"path"
)

// spaFileSystem serves the map UI, answering unknown paths with index.html
// so client-side routes survive a reload. Missing assets stay 404.
type spaFileSystem struct {
	root http.FileSystem
}

// Open implements http.FileSystem.
func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if os.IsNotExist(err) && path.Ext(name) == "" {
		return s.root.Open("/index.html")
	}
	return f, err
}
