package export

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/store"
)

// Discover lists every container under root as a res:// path, sorted.
// Hidden directories and derived artifacts of earlier sessions are skipped.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if format.Classify(path) == format.Unknown || format.IsDerived(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, store.Scheme+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}
