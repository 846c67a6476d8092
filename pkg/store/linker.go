package store

import (
	"fmt"

	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

// PathUID returns the UID in the header of path, or uid.Invalid when the
// file cannot be read
func (s *Store) PathUID(path string) uid.ID {
	id, err := s.GetUID(path)
	if err != nil {
		return uid.Invalid
	}
	return id
}

// ResolveUID loads the resource the registry binds id to
func (s *Store) ResolveUID(id uid.ID) (resource.Resource, error) {
	path, ok := s.uids.Path(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", uid.ErrNotFound, id)
	}
	return s.ResolvePath(path)
}

// ResolvePath returns the cached instance for path, loading it on a miss
func (s *Store) ResolvePath(path string) (resource.Resource, error) {
	if r, ok := s.cache.get(path); ok {
		return r, nil
	}
	return s.Load(path)
}

var _ resource.Linker = (*Store)(nil)
