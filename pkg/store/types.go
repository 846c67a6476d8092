package store

import (
	"io"
	"io/fs"
	"log/slog"

	"github.com/ssargent/respack/pkg/metrics"
	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

// DefaultCacheSize is the number of loaded resources kept for reference reuse
const DefaultCacheSize = 256

// Config holds the collaborators of a Store
type Config struct {
	FS        FileSystem         // Where containers are read and written
	UIDs      uid.Registry       // UID -> canonical path bindings
	Classes   *resource.Registry // Class dispatch table for loads
	CacheSize int                // Resources kept for reference reuse; 0 means DefaultCacheSize
	Logger    *slog.Logger       // Defaults to slog.Default()
	Metrics   *metrics.Metrics   // Optional
}

// FileSystem is the file access the store needs. Every handle it returns is
// closed by the store on all exit paths.
type FileSystem interface {
	Open(path string) (io.ReadCloser, error)
	// Create truncates or creates path, making parent directories as needed
	Create(path string) (io.WriteCloser, error)
	Remove(path string) error
	Stat(path string) (fs.FileInfo, error)
}
