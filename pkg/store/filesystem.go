package store

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Scheme prefixes project-relative resource paths
const Scheme = "res://"

// OSFileSystem serves resource paths from the local disk. "res://" paths are
// resolved under Root and cannot escape it; any other path is used as is.
type OSFileSystem struct {
	Root string
}

// NewOSFileSystem creates a filesystem rooted at root
func NewOSFileSystem(root string) *OSFileSystem {
	return &OSFileSystem{Root: root}
}

// Resolve maps a resource path to an OS path
func (o *OSFileSystem) Resolve(path string) string {
	rest, ok := strings.CutPrefix(path, Scheme)
	if !ok {
		return path
	}
	// Cleaning as an absolute path drops any leading ".."
	clean := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(rest))
	return filepath.Join(o.Root, clean)
}

// Open opens path for reading
func (o *OSFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(o.Resolve(path))
}

// Create opens path for writing, truncating it
func (o *OSFileSystem) Create(path string) (io.WriteCloser, error) {
	target := o.Resolve(path)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return nil, err
	}

	return os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

// Remove deletes path
func (o *OSFileSystem) Remove(path string) error {
	return os.Remove(o.Resolve(path))
}

// Stat describes path
func (o *OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(o.Resolve(path))
}
